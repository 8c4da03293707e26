package xdump

import (
	"github.com/xdump/xdump/internal/io/archio"
	"github.com/xdump/xdump/pkg/config"
)

// xdump is an implementation of XDump interface.
type xdump struct {
	cfg config.Config
}

// New creates a new instance of XDump.
func New(
	cfg config.Config,
) XDump {
	res := xdump{
		cfg: cfg}
	return &res
}

// Inspect lists files of the archive with their sizes.
func (x *xdump) Inspect(path string) ([]archio.Entry, error) {
	r, err := archio.Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return r.Entries(), nil
}
