package series

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
)

// LoadSampled reads a flat text file of whitespace separated numbers into a
// series. Reading stops at the first token that is not a number.
//
// The file is read twice: once to count the samples, once to fill a slice of
// exactly that size. An unreadable or empty file yields an empty series and an
// error wrapping ErrNoData; the series is usable either way.
func LoadSampled(tag int, path string, opts ...Option) (*Sampled, error) {
	o := buildOptions(opts)
	logger := o.logger.With("component", "series", "tag", tag, "path", path)

	count, err := scanFile(path, nil)
	if err != nil {
		logger.Warn("could not open sample file", "error", err)
		return newSampled(tag, nil, o), fmt.Errorf("%w: %v", ErrNoData, err)
	}
	if count == 0 {
		logger.Warn("sample file contains no numbers")
		return newSampled(tag, nil, o), fmt.Errorf("%w: %s contains no samples", ErrNoData, path)
	}

	offset := 0
	if o.prependZero {
		offset = 1
	}
	data := make([]float64, count+offset)

	n, err := scanFile(path, data[offset:])
	if err != nil {
		logger.Warn("could not reopen sample file", "error", err)
		return newSampled(tag, nil, o), fmt.Errorf("%w: %v", ErrNoData, err)
	}
	if n != count {
		// file changed between passes; keep what was read
		logger.Warn("sample file changed while reading", "expected", count, "read", n)
		data = data[:n+offset]
	}

	return newSampled(tag, data, o), nil
}

// scanFile counts numeric tokens in path, storing them into dst while it has
// room. A nil dst only counts.
func scanFile(path string, dst []float64) (int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	return scanNumbers(file, dst)
}

func scanNumbers(r io.Reader, dst []float64) (int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Split(bufio.ScanWords)

	count := 0
	for scanner.Scan() {
		v, err := strconv.ParseFloat(scanner.Text(), 64)
		if err != nil {
			break
		}
		if dst != nil {
			if count >= len(dst) {
				break
			}
			dst[count] = v
		}
		count++
	}

	if err := scanner.Err(); err != nil {
		return count, fmt.Errorf("failed to scan samples: %w", err)
	}
	return count, nil
}
