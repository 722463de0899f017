package camera

import (
	"context"
	"encoding/json"

	reolinkclient "github.com/tuzkov/reolinkCam/reolinkClient"
)

const (
	cmdGetEnc = "GetEnc"
	cmdGetRec = "GetRec"
)

// Encoding is the GetEnc answer: encoder settings of the "Clear" (main) and
// "Fluent" (sub) streams.
type Encoding struct {
	Audio      int            `json:"audio"`
	Channel    int            `json:"channel"`
	MainStream StreamEncoding `json:"mainStream"`
	SubStream  StreamEncoding `json:"subStream"`

	// Raw is the whole "value" object as sent by the device
	Raw json.RawMessage `json:"-"`
}

type StreamEncoding struct {
	BitRate   int    `json:"bitRate"`
	FrameRate int    `json:"frameRate"`
	Profile   string `json:"profile"`
	Size      string `json:"size"`
	GOP       int    `json:"gop,omitempty"`
	VType     string `json:"vType,omitempty"`
}

// Recording is the GetRec answer.
type Recording struct {
	Channel   int      `json:"channel"`
	Overwrite int      `json:"overwrite"`
	PostRec   string   `json:"postRec"`
	PreRec    int      `json:"preRec"`
	Schedule  Schedule `json:"schedule"`

	Raw json.RawMessage `json:"-"`
}

type Schedule struct {
	Enable int `json:"enable"`
	// one char per hour of the week, "1" records
	Table string `json:"table"`
}

// GetRecordingEncoding returns the current encoding settings.
func (r *Reolink) GetRecordingEncoding(ctx context.Context) (*Encoding, error) {
	var value struct {
		Enc Encoding `json:"Enc"`
	}
	raw, err := r.query(ctx, cmdGetEnc, &value)
	if err != nil {
		return nil, err
	}
	value.Enc.Raw = raw
	return &value.Enc, nil
}

// GetRecordingAdvanced returns the recording setup.
func (r *Reolink) GetRecordingAdvanced(ctx context.Context) (*Recording, error) {
	var value struct {
		Rec Recording `json:"Rec"`
	}
	raw, err := r.query(ctx, cmdGetRec, &value)
	if err != nil {
		return nil, err
	}
	value.Rec.Raw = raw
	return &value.Rec, nil
}

func (r *Reolink) query(ctx context.Context, cmd string, v any) (json.RawMessage, error) {
	res, err := r.Dispatcher().ExecuteOne(ctx, reolinkclient.ChannelCommand(cmd, reolinkclient.ActionQueryWithRange, r.cfg.Channel))
	if err != nil {
		return nil, err
	}
	if err := res.Decode(v); err != nil {
		return nil, err
	}
	return res.Value, nil
}
