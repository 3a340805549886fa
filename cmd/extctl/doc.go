// Package main is the entry point for extctl, the catalog operator CLI.
//
// Usage:
//
//	extctl list
//	extctl --kind node install ./adder.zip
//	extctl disable Hello
//	extctl load Hello --props '{"name":"world"}'
//	extctl events -n 5
//
// The server URL comes from --server, then $NODEGRAPH_SERVER, then
// http://localhost:8000.
package main
