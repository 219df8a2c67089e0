package process

import "io"

// ptyHandle is a pseudo-terminal master: creack/pty on Unix, ConPTY on Windows.
type ptyHandle interface {
	io.ReadWriteCloser
	Resize(cols, rows uint16) error
}
