package cli

import (
	"context"

	"github.com/coremeet/roomclient/internal/config"
	"github.com/coremeet/roomclient/internal/producer"
	"github.com/coremeet/roomclient/internal/roomerr"
)

// noCaptureAcquirer is the documented stand-in for producer.Acquirer:
// getUserMedia/screen-capture is a browser/OS capability with no
// portable Go equivalent, mirrored from devicewatch.DefaultEnumerator's
// same reasoning. A host with a real capture backend (an OS audio/video
// library, a virtual camera feeding RTP) should supply its own Acquirer
// to the Room Session instead of this one.
type noCaptureAcquirer struct{}

func (noCaptureAcquirer) AcquireAudio(ctx context.Context, constraints config.AudioConstraints, deviceID string) (producer.Track, error) {
	return nil, roomerr.New("acquireAudio", roomerr.ErrMediaAcquisition)
}

func (noCaptureAcquirer) AcquireVideo(ctx context.Context, deviceID string, width, height, frameRate int) (producer.Track, error) {
	return nil, roomerr.New("acquireVideo", roomerr.ErrMediaAcquisition)
}

func (noCaptureAcquirer) AcquireScreen(ctx context.Context, width, height, frameRate int) (producer.Track, producer.Track, error) {
	return nil, nil, roomerr.New("acquireScreen", roomerr.ErrMediaAcquisition)
}
