// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package collect

import (
	"fmt"
	"io"

	"github.com/magicai-labs/trial-linker/pkg/types"
)

// Observer receives pipeline progress callbacks. Implementations must be
// cheap; they run inline with the collection loop.
type Observer interface {
	// Seeded reports the compound list after classification seeding.
	Seeded(total int)
	// CompoundDone reports one finished compound with its link row and the
	// number of study documents written for it.
	CompoundDone(rec types.LinkRecord, studies int)
	// Progress reports running counts every ProgressEvery compounds.
	Progress(done, skipped, total int)
}

// NopObserver ignores all callbacks.
type NopObserver struct{}

func (NopObserver) Seeded(int) {}

func (NopObserver) CompoundDone(types.LinkRecord, int) {}

func (NopObserver) Progress(int, int, int) {}

// LogObserver writes plain progress lines to an output stream.
type LogObserver struct {
	Out io.Writer
}

func (o LogObserver) Seeded(total int) {
	fmt.Fprintf(o.Out, "seeded %d compounds\n", total)
}

func (o LogObserver) CompoundDone(rec types.LinkRecord, studies int) {
	if rec.Error != "" {
		fmt.Fprintf(o.Out, "cid %d: %s (%s)\n", rec.CID, rec.Source, rec.Error)
		return
	}
	fmt.Fprintf(o.Out, "cid %d: %d links via %s, %d studies\n", rec.CID, rec.NNCT, rec.Source, studies)
}

func (o LogObserver) Progress(done, skipped, total int) {
	fmt.Fprintf(o.Out, "progress: %d/%d done, %d skipped\n", done, total, skipped)
}
