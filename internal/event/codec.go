package event

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/karmaloop/chatcore/internal/model"
)

// ErrDecoding is returned for frames that are not a valid envelope.
var ErrDecoding = errors.New("malformed frame")

// Encode serializes e into a wire frame.
func Encode(e Event) ([]byte, error) {
	data := dataWire{
		ChatID:    e.Payload.ChatID,
		UserID:    e.Payload.UserID,
		MessageID: e.Payload.MessageID,
		Content:   e.Payload.Content,
		IsTyping:  e.Payload.IsTyping,
		IsOnline:  e.Payload.IsOnline,
	}
	if e.Payload.Message != nil {
		mw := messageToWire(*e.Payload.Message)
		data.Message = &mw
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode %s data: %w", e.Kind, err)
	}

	frame, err := json.Marshal(envelope{
		Event:     string(e.Kind),
		Data:      raw,
		Timestamp: model.FormatTime(e.Timestamp),
	})
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", e.Kind, err)
	}
	return frame, nil
}

// Decode parses a wire frame. Unknown tags decode without error; callers check Kind.Valid.
// Any structural problem is reported as ErrDecoding.
func Decode(frame []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrDecoding, err)
	}
	if env.Event == "" {
		return Event{}, fmt.Errorf("%w: missing event tag", ErrDecoding)
	}

	ts, err := model.ParseTime(env.Timestamp)
	if err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrDecoding, err)
	}

	var data dataWire
	if len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return Event{}, fmt.Errorf("%w: data: %v", ErrDecoding, err)
		}
	}

	p := Payload{
		ChatID:    data.ChatID,
		UserID:    data.UserID,
		MessageID: data.MessageID,
		Content:   data.Content,
		IsTyping:  data.IsTyping,
		IsOnline:  data.IsOnline,
	}
	if data.Message != nil {
		msg, err := messageFromWire(*data.Message)
		if err != nil {
			return Event{}, fmt.Errorf("%w: message: %v", ErrDecoding, err)
		}
		p.Message = &msg
		if p.ChatID == "" {
			p.ChatID = msg.ChatID
		}
	}

	kind := Kind(env.Event)
	switch kind {
	case KindTypingStart, KindTypingStop:
		// The tag is authoritative for typing state.
		isTyping := kind == KindTypingStart
		p.IsTyping = &isTyping
	}

	return Event{Kind: kind, Payload: p, Timestamp: ts}, nil
}

func messageToWire(m model.Message) messageWire {
	mw := messageWire{
		ID:        m.ID,
		ChatID:    m.ChatID,
		SenderID:  m.SenderID,
		Content:   m.Content,
		IsRead:    m.IsRead,
		CreatedAt: model.FormatTime(m.CreatedAt),
	}
	if m.ReadAt != nil {
		mw.ReadAt = model.FormatTime(*m.ReadAt)
	}
	for _, a := range m.Attachments {
		mw.Attachments = append(mw.Attachments, attachmentWire{
			URL:      a.URL,
			Name:     a.Name,
			MimeType: a.MimeType,
			Size:     a.Size,
		})
	}
	return mw
}

func messageFromWire(mw messageWire) (model.Message, error) {
	created, err := model.ParseTime(mw.CreatedAt)
	if err != nil {
		return model.Message{}, err
	}

	m := model.Message{
		ID:        mw.ID,
		ChatID:    mw.ChatID,
		SenderID:  mw.SenderID,
		Content:   mw.Content,
		IsRead:    mw.IsRead,
		CreatedAt: created,
	}

	if mw.ReadAt != "" {
		readAt, err := model.ParseTime(mw.ReadAt)
		if err != nil {
			return model.Message{}, err
		}
		m.ReadAt = &readAt
	}

	for _, a := range mw.Attachments {
		m.Attachments = append(m.Attachments, model.Attachment{
			URL:      a.URL,
			Name:     a.Name,
			MimeType: a.MimeType,
			Size:     a.Size,
		})
	}
	return m, nil
}
