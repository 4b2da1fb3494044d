package solver

import (
	"fmt"
	"path/filepath"

	"imgrev-go/pkg/bitops"
	"imgrev-go/pkg/codec"
	"imgrev-go/pkg/log"
	"imgrev-go/pkg/mask"
	"imgrev-go/pkg/record"
	"imgrev-go/pkg/transform"
)

// ScrambleJob applies a sequence to a source image and writes the challenge files a
// reconstruction needs: the final image and one record per seed.
type ScrambleJob struct {
	Source    string
	Key       string
	Watermark string
	Sequence  transform.Sequence
	Seeds     []int
	Output    string
	// RecordDir receives M1.txt, M2.txt, ... (with RecordExt appended).
	RecordDir string
	RecordExt string
}

// Scramble runs job and returns the paths of the records it wrote.
func Scramble(job ScrambleJob) ([]string, error) {
	if err := job.Sequence.Validate(); err != nil {
		return nil, err
	}
	if len(job.Seeds) == 0 {
		return nil, fmt.Errorf("scramble: at least one seed is required")
	}
	src, err := codec.Decode(job.Source)
	if err != nil {
		return nil, err
	}
	key, err := codec.Decode(job.Key)
	if err != nil {
		return nil, err
	}
	if key.Width != src.Width || key.Height != src.Height {
		return nil, fmt.Errorf("%w: key image is %dx%d, source %dx%d", bitops.ErrSizeMismatch, key.Width, key.Height, src.Width, src.Height)
	}
	wm, err := codec.Decode(job.Watermark)
	if err != nil {
		return nil, err
	}

	final, err := transform.ApplyForward(src.Pix, key.Pix, job.Sequence)
	if err != nil {
		return nil, err
	}
	if err := codec.Encode(&codec.Image{Width: src.Width, Height: src.Height, Pix: final}, job.Output); err != nil {
		return nil, err
	}

	var paths []string
	for i, seed := range job.Seeds {
		if seed < 0 {
			return nil, fmt.Errorf("scramble: seed %d is negative", seed)
		}
		rec := mask.Compute(src.Pix, wm.Pix, seed)
		p := filepath.Join(job.RecordDir, fmt.Sprintf("M%d.txt%s", i+1, job.RecordExt))
		if err := record.Save(p, rec); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	log.Info().Str("sequence", job.Sequence.String()).Str("output", job.Output).Int("records", len(paths)).
		Msg("scramble: challenge written")
	return paths, nil
}
