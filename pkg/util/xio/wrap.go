package xio

import "io"

// WrapReader turns an io.Reader into an io.ReadCloser whose Close calls the
// given closer function. When the reader implements io.WriterTo the wrapper
// preserves that, so io.Copy keeps its fast path.
func WrapReader(r io.Reader, closer func() error) io.ReadCloser {
	if _, ok := r.(io.WriterTo); ok {
		return readCloserWriteToWrapper{r, closer}
	}
	return readCloserWrapper{r, closer}
}

// WrapWriter turns an io.Writer into an io.WriteCloser whose Close calls the
// given closer function.
func WrapWriter(w io.Writer, closer func() error) io.WriteCloser {
	return writeCloserWrapper{w, closer}
}

type readCloserWrapper struct {
	io.Reader
	closer func() error
}

func (r readCloserWrapper) Close() error {
	if r.closer != nil {
		return r.closer()
	}
	return nil
}

type readCloserWriteToWrapper struct {
	io.Reader
	closer func() error
}

func (r readCloserWriteToWrapper) WriteTo(w io.Writer) (int64, error) {
	return r.Reader.(io.WriterTo).WriteTo(w)
}

func (r readCloserWriteToWrapper) Close() error {
	if r.closer != nil {
		return r.closer()
	}
	return nil
}

type writeCloserWrapper struct {
	io.Writer
	closer func() error
}

func (w writeCloserWrapper) Close() error {
	if w.closer != nil {
		return w.closer()
	}
	return nil
}
