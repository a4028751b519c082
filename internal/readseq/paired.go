package readseq

import (
	"github.com/pkg/errors"

	"github.com/tstohn/scdemux/internal/apperr"
)

// PairedReader reads two streams in lockstep, enforcing spec.md §6's
// invariant that line i in one stream corresponds to line i in the other.
type PairedReader struct {
	fwd, rev *Reader
}

// OpenPaired opens both mates. Both are read with the same Format.
func OpenPaired(fwdPath, revPath string, format Format) (*PairedReader, error) {
	fwd, err := Open(fwdPath, format)
	if err != nil {
		return nil, err
	}
	rev, err := Open(revPath, format)
	if err != nil {
		fwd.Close()
		return nil, err
	}
	return &PairedReader{fwd: fwd, rev: rev}, nil
}

// Close releases both underlying files.
func (p *PairedReader) Close() error {
	errFwd := p.fwd.Close()
	errRev := p.rev.Close()
	if errFwd != nil {
		return errFwd
	}
	return errRev
}

// Next reads one read from each mate. Both streams must reach EOF
// simultaneously; a length mismatch is an IoError (spec.md §7).
func (p *PairedReader) Next() (fwd, rev Read, ok bool, err error) {
	fwd, fwdOK, err := p.fwd.Next()
	if err != nil {
		return Read{}, Read{}, false, err
	}
	rev, revOK, err := p.rev.Next()
	if err != nil {
		return Read{}, Read{}, false, err
	}
	if fwdOK != revOK {
		return Read{}, Read{}, false, apperr.IO(errors.New("readseq: paired input streams have different lengths"))
	}
	return fwd, rev, fwdOK, nil
}
