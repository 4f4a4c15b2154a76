//go:build !unix

package rusage

import "errors"

func sample() (Usage, error) {
	return Usage{}, errors.ErrUnsupported
}
