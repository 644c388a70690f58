// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package blockstream

import (
	"errors"
	"io"
	"testing"

	"github.com/blocklayer/blockstream/berrors"
	"github.com/blocklayer/blockstream/substrate"
	"github.com/stretchr/testify/require"
)

// corruptingTransformer is identity on Transform, but Untransform fails
// from the call'th invocation onward, simulating a block that decodes
// cleanly at first and is later discovered to be corrupt.
type corruptingTransformer struct {
	calls  *int
	failAt int
}

func (c corruptingTransformer) Transform(in []byte) ([]byte, error) {
	return in, nil
}

func (c corruptingTransformer) Untransform(in, scratch []byte) (int, error) {
	*c.calls++
	if *c.calls >= c.failAt {
		return 0, berrors.E(berrors.Corruption, "blockstream: simulated corruption")
	}
	if len(in) > 0 && len(scratch) > 0 && &in[0] == &scratch[0] {
		return len(in), nil
	}
	return copy(scratch, in), nil
}

func (c corruptingTransformer) MayChangeSize() bool { return false }

func TestRandomAccessLatchesStickyErrorAfterCorruption(t *testing.T) {
	sub := substrate.NewBuffer()
	calls := 0
	s, err := NewRandomAccess(sub, Options{
		BlockSize:   512,
		Transformer: corruptingTransformer{calls: &calls, failAt: 2},
	})
	require.NoError(t, err)

	_, err = s.Write(make([]byte, 1024))
	require.NoError(t, err)
	require.NoError(t, s.Flush(false))

	_, err = s.Seek(0, io.SeekStart)
	require.NoError(t, err)
	buf := make([]byte, 1024)
	_, err = io.ReadFull(s, buf)
	require.Error(t, err)
	require.True(t, berrors.Is(berrors.Corruption, err), "error %v should be Corruption", err)

	callsAfterFailure := calls

	// Once latched, further operations must fail immediately with the same
	// sticky error rather than touching the transformer (or the substrate)
	// again.
	_, err2 := s.Read(buf)
	require.Error(t, err2)
	require.True(t, berrors.Is(berrors.Corruption, err2))
	require.Equal(t, callsAfterFailure, calls)

	_, err3 := s.Write([]byte("x"))
	require.Error(t, err3)
	require.True(t, berrors.Is(berrors.Corruption, err3))

	require.Error(t, s.Flush(false))
	require.Equal(t, callsAfterFailure, calls, "sticky error must short-circuit before re-invoking the transformer")
}

// failingTransformer is identity on Transform until the call'th invocation,
// after which it fails outright, simulating a codec fault unrelated to any
// particular argument.
type failingTransformer struct {
	calls  *int
	failAt int
}

func (f failingTransformer) Transform(in []byte) ([]byte, error) {
	*f.calls++
	if *f.calls >= f.failAt {
		return nil, errors.New("simulated codec failure")
	}
	return in, nil
}

func (f failingTransformer) Untransform(in, scratch []byte) (int, error) {
	return copy(scratch, in), nil
}

func (f failingTransformer) MayChangeSize() bool { return false }

func TestWriteOnceLatchesStickyErrorAfterFailedTransform(t *testing.T) {
	sub := substrate.NewBuffer()
	calls := 0
	w, err := NewWriteOnce(sub, Options{
		BlockSize:   512,
		Transformer: failingTransformer{calls: &calls, failAt: 2},
	})
	require.NoError(t, err)

	_, err = w.Write(make([]byte, 512))
	require.NoError(t, err)

	_, err = w.Write(make([]byte, 512))
	require.Error(t, err)
	callsAfterFailure := calls

	_, err2 := w.Write([]byte("y"))
	require.Error(t, err2)
	require.Equal(t, err.Error(), err2.Error())
	require.Equal(t, callsAfterFailure, calls, "sticky error must short-circuit before re-invoking the transformer")
}
