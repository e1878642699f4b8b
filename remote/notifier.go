package remote

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/JeanRibes/piano/music"
	"github.com/JeanRibes/piano/shared"
	charmlog "github.com/charmbracelet/log"
)

var ErrNoRecording = errors.New("remote: empty recording")

// StatusError is returned when the collaborator answers with a non-2xx code.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("remote: status %d: %s", e.Code, e.Body)
}

// Payload is the JSON body posted after each take.
type Payload struct {
	DeviceID   string `json:"deviceId"`
	Message    string `json:"message"`
	SensorType string `json:"sensorType"`
	Value      int    `json:"value"`
	Unit       string `json:"unit"`
	MIDI       string `json:"midi,omitempty"`
}

type reply struct {
	Response string `json:"response"`
}

// Describe builds the summary line for a take, naming at most maxNames notes.
func Describe(events []music.RecEvent, maxNames int) string {
	names := music.Names(events, maxNames)
	return fmt.Sprintf("Melody recorded: %s (Total %d notes)", strings.Join(names, "-"), len(events))
}

type Notifier struct {
	URL      string
	DeviceID string
	MaxNames int
	Client   *http.Client
}

func NewNotifier(url, deviceID string, timeout time.Duration, maxNames int) *Notifier {
	return &Notifier{
		URL:      url,
		DeviceID: deviceID,
		MaxNames: maxNames,
		Client:   &http.Client{Timeout: timeout},
	}
}

func (n *Notifier) Payload(events []music.RecEvent) (Payload, error) {
	p := Payload{
		DeviceID:   n.DeviceID,
		Message:    Describe(events, n.MaxNames),
		SensorType: "melody",
		Value:      len(events),
		Unit:       "notes",
	}
	data, err := music.SMF(events)
	if err != nil {
		return p, fmt.Errorf("encoding midi: %w", err)
	}
	p.MIDI = base64.StdEncoding.EncodeToString(data)
	return p, nil
}

// Notify posts the take and returns the collaborator's reply text, which may
// be empty.
func (n *Notifier) Notify(ctx context.Context, events []music.RecEvent) (string, error) {
	if len(events) == 0 {
		return "", ErrNoRecording
	}
	p, err := n.Payload(events)
	if err != nil {
		return "", err
	}
	body, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.URL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := n.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return "", err
	}
	if resp.StatusCode/100 != 2 {
		return "", &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	var r reply
	if err := json.Unmarshal(data, &r); err != nil {
		// a plain-text or empty answer is still a success
		return "", nil
	}
	return r.Response, nil
}

// NotifyTask sends the take once each time a recording stops. Failures are
// reported and never retried.
type NotifyTask struct {
	state    *music.SynthState
	notifier *Notifier
	sink     chan<- shared.Message
	logger   *charmlog.Logger
}

func NewNotifyTask(state *music.SynthState, notifier *Notifier, sink chan<- shared.Message, logger *charmlog.Logger) *NotifyTask {
	return &NotifyTask{state: state, notifier: notifier, sink: sink, logger: logger}
}

func (t *NotifyTask) Poll(ctx context.Context) {
	events, ok := t.state.TakeNotify()
	if !ok {
		return
	}
	text, err := t.notifier.Notify(ctx, events)
	switch {
	case errors.Is(err, ErrNoRecording):
		t.logger.Info("nothing recorded, not sent")
	case err != nil:
		t.logger.Error("notify", "err", err)
		shared.Post(t.sink, shared.Message{Type: shared.Error, String: "send failed"})
	default:
		t.logger.Info("take sent", "notes", len(events), "reply", text)
		if text != "" {
			shared.Post(t.sink, shared.Message{Type: shared.RemoteReply, String: text})
		}
	}
}
