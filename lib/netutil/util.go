package netutil

import "net"

// FreeTCPPort lets the kernel pick a currently free TCP port, for tests that
// bind real listeners. Based on https://gist.github.com/sevkin/96bdae9274465b2d09191384f86ef39d
func FreeTCPPort() (port int, err error) {
	addr, err := net.ResolveTCPAddr("tcp", "localhost:0")
	if err != nil {
		return 0, err
	}
	listener, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, err
	}
	defer listener.Close()
	return listener.Addr().(*net.TCPAddr).Port, nil
}
