/*
Package cli implements extctl, the operator command line for a catalog server.

Every command talks to the server over HTTP through catalogclient. The load
command goes further and runs a component module locally through the same
loader a browser host uses, which makes it handy for checking an archive
before pointing a real host at it.
*/
package cli
