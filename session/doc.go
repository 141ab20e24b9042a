// Package session is the top-level orchestrator tying the Control
// Protocol, Block Scheduler, Worker Transport, and Integrity Pipeline
// together into the two external operations the engine exposes: Send
// and Receive. Per spec §6, the Receiver owns both listening sockets
// (control port 7878, data port 7879 by default) and the Sender
// initiates both connections; Send dials out, Receive accepts in.
package session
