package audio

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestPull(st *fakeStream, openErr error) (*pullBackend, *int) {
	opens := 0
	cfg := testConfig()
	cfg.Mode = ModeBlocking
	b := newPullBackend(cfg, func(c Config) (blockingStream, []int16, Config, error) {
		opens++
		if openErr != nil {
			return nil, nil, c, openErr
		}
		st.buf = make([]int16, c.BlockSamples())
		return st, st.buf, c, nil
	}, zerolog.Nop())
	return b, &opens
}

func TestPullBackendReadReturnsFreshBlocks(t *testing.T) {
	st := &fakeStream{fill: 5}
	b, _ := newTestPull(st, nil)
	defer b.Close()

	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	first, err := b.Read()
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	second, err := b.Read()
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}

	if len(first) != 512 || first[0] != 5 {
		t.Fatalf("unexpected first block: len %d value %d", len(first), first[0])
	}
	if second[0] != 6 {
		t.Fatalf("unexpected second block value %d", second[0])
	}
	// The first block must not alias the driver buffer.
	if first[0] != 5 {
		t.Fatal("first block was overwritten by the second read")
	}
}

func TestPullBackendStartIsIdempotent(t *testing.T) {
	st := &fakeStream{}
	b, opens := newTestPull(st, nil)
	defer b.Close()

	b.Start(context.Background())
	b.Start(context.Background())

	if *opens != 1 {
		t.Fatalf("expected 1 open, got %d", *opens)
	}
}

func TestPullBackendRecoversOnce(t *testing.T) {
	st := &fakeStream{readErrs: []error{errFake, nil}}
	b, _ := newTestPull(st, nil)
	defer b.Close()
	b.Start(context.Background())

	block, err := b.Read()
	if err != nil {
		t.Fatalf("expected recovered read, got %v", err)
	}
	if len(block) != 512 {
		t.Fatalf("expected full block, got %d", len(block))
	}
	if _, _, _, recovers := st.counts(); recovers != 1 {
		t.Fatalf("expected 1 recovery, got %d", recovers)
	}
	if b.Overruns() != 1 {
		t.Fatalf("expected 1 overrun, got %d", b.Overruns())
	}
}

func TestPullBackendSecondFailureIsFatal(t *testing.T) {
	st := &fakeStream{readErrs: []error{errFake, errFake}}
	b, _ := newTestPull(st, nil)
	defer b.Close()
	b.Start(context.Background())

	_, err := b.Read()
	if !errors.Is(err, ErrOverrun) {
		t.Fatalf("expected ErrOverrun, got %v", err)
	}
	if _, _, _, recovers := st.counts(); recovers != 1 {
		t.Fatalf("expected exactly 1 recovery attempt, got %d", recovers)
	}
}

func TestPullBackendRecoveryFailureIsFatal(t *testing.T) {
	st := &fakeStream{readErrs: []error{errFake}, recoverErr: errors.New("device gone")}
	b, _ := newTestPull(st, nil)
	defer b.Close()
	b.Start(context.Background())

	_, err := b.Read()
	if !errors.Is(err, ErrOverrun) {
		t.Fatalf("expected ErrOverrun, got %v", err)
	}
	if st.reads != 1 {
		t.Fatalf("expected no retry after failed recovery, got %d reads", st.reads)
	}
}

func TestPullBackendReadAfterCloseReturnsEOF(t *testing.T) {
	st := &fakeStream{}
	b, _ := newTestPull(st, nil)
	b.Start(context.Background())
	b.Close()

	if _, err := b.Read(); !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF, got %v", err)
	}
	_, stops, closes, _ := st.counts()
	if stops != 1 || closes != 1 {
		t.Fatalf("expected stream stopped and closed once, got stops=%d closes=%d", stops, closes)
	}
}

func TestPullBackendCancelStopsReads(t *testing.T) {
	st := &fakeStream{}
	b, _ := newTestPull(st, nil)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	b.Start(ctx)
	if _, err := b.Read(); err != nil {
		t.Fatalf("Read failed: %v", err)
	}

	cancel()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if _, err := b.Read(); errors.Is(err, io.EOF) {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("Read kept returning data after cancel")
}

func TestPullBackendOpenError(t *testing.T) {
	b, _ := newTestPull(&fakeStream{}, ErrDeviceOpen)
	if err := b.Start(context.Background()); !errors.Is(err, ErrDeviceOpen) {
		t.Fatalf("expected ErrDeviceOpen, got %v", err)
	}
	if _, err := b.Read(); !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF from unstarted backend, got %v", err)
	}
}

func TestPullBackendStreamStartError(t *testing.T) {
	st := &fakeStream{startErr: errFake}
	b, _ := newTestPull(st, nil)

	if err := b.Start(context.Background()); !errors.Is(err, ErrDeviceOpen) {
		t.Fatalf("expected ErrDeviceOpen, got %v", err)
	}
	if _, _, closes, _ := st.counts(); closes != 1 {
		t.Fatalf("expected stream closed after failed start, got %d", closes)
	}
}
