package device

import (
	"errors"
	"fmt"

	"go.opentelemetry.io/contrib/bridges/otelslog"

	"github.com/room4-2/accessai/audio"
)

const scopeName = "github.com/room4-2/accessai/audio/device"

var logger = otelslog.NewLogger(scopeName)

// Speaker pulls rendered audio from a mixer into hardware.
type Speaker interface {
	Start() error
	Close() error
}

// Devices bundles the microphone opener and the speaker chosen by backend.
type Devices struct {
	ctx     *Context
	Speaker Speaker
}

// Open prepares hardware for backend ("malgo" or "oto"). The microphone always
// goes through miniaudio. If miniaudio itself cannot start, Open still
// succeeds with the oto backend and OpenInput reports the failure, so the
// conversation can run without a microphone.
func Open(backend string, mixer *audio.Mixer) (*Devices, error) {
	ctx, ctxErr := NewContext()
	d := &Devices{ctx: ctx}
	if ctxErr != nil {
		d.ctx = nil
	}

	switch backend {
	case "oto":
		sp, err := NewOtoSpeaker(mixer)
		if err != nil {
			d.Close()
			return nil, err
		}
		d.Speaker = sp
	case "malgo", "":
		if ctxErr != nil {
			return nil, ctxErr
		}
		sp, err := ctx.OpenSpeaker(mixer)
		if err != nil {
			d.Close()
			return nil, err
		}
		d.Speaker = sp
	default:
		d.Close()
		return nil, fmt.Errorf("unknown audio backend %q", backend)
	}

	if err := d.Speaker.Start(); err != nil {
		d.Close()
		return nil, err
	}
	return d, nil
}

// OpenInput is an audio.OpenInputFunc backed by miniaudio.
func (d *Devices) OpenInput(sampleRate int) (audio.InputDevice, error) {
	if d.ctx == nil {
		return nil, errors.New("audio subsystem unavailable")
	}
	return d.ctx.OpenInput(sampleRate)
}

// Close releases the speaker and the miniaudio context.
func (d *Devices) Close() {
	if d.Speaker != nil {
		_ = d.Speaker.Close()
	}
	if d.ctx != nil {
		d.ctx.Close()
	}
}
