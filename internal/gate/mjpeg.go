package gate

import (
	"context"
	"image"
	"image/jpeg"
	"mime"
	"mime/multipart"
	"net/http"
	"sync"

	"github.com/cockroachdb/errors"
)

// MJPEGSource reads frames from an MJPEG-over-HTTP camera stream, the usual
// interface of the IP cameras mounted at gates. Each part of the
// multipart/x-mixed-replace body is one JPEG frame.
type MJPEGSource struct {
	url    string
	client *http.Client

	mu     sync.Mutex
	resp   *http.Response
	reader *multipart.Reader
}

func NewMJPEGSource(url string) *MJPEGSource {
	return &MJPEGSource{url: url, client: http.DefaultClient}
}

// Open connects to the stream. The request is bound to ctx, so cancelling the
// capture session aborts any blocked frame read.
func (s *MJPEGSource) Open(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return errors.Newf("camera stream returned %d", resp.StatusCode)
	}

	mediaType, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || mediaType != "multipart/x-mixed-replace" || params["boundary"] == "" {
		resp.Body.Close()
		return errors.Newf("unexpected stream content type %q", resp.Header.Get("Content-Type"))
	}

	s.mu.Lock()
	s.resp = resp
	s.reader = multipart.NewReader(resp.Body, params["boundary"])
	s.mu.Unlock()
	return nil
}

func (s *MJPEGSource) Frame(ctx context.Context) (image.Image, error) {
	s.mu.Lock()
	reader := s.reader
	s.mu.Unlock()
	if reader == nil {
		return nil, errors.New("stream not open")
	}

	part, err := reader.NextPart()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	defer part.Close()

	img, err := jpeg.Decode(part)
	if err != nil {
		return nil, err
	}
	return img, nil
}

func (s *MJPEGSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.resp == nil {
		return nil
	}
	err := s.resp.Body.Close()
	s.resp = nil
	s.reader = nil
	return err
}
