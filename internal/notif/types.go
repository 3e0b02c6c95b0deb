package notif

import (
	"encoding/json"
	"fmt"
	"time"
)

type NotificationType string

const (
	FollowType  NotificationType = "follow"
	CommentType NotificationType = "comment"
	RatingType  NotificationType = "rating"
	ChatType    NotificationType = "chat"
)

func (t NotificationType) IsValid() bool {
	switch t {
	case FollowType, CommentType, RatingType, ChatType:
		return true
	}
	return false
}

// Payload is the type-specific part of a notification. Each type has exactly one payload shape.
type Payload interface {
	Type() NotificationType
}

type FollowPayload struct {
	FollowerID   string `json:"follower_id"`
	FollowerName string `json:"follower_name"`
}

type CommentPayload struct {
	PostID        string `json:"post_id"`
	CommentID     string `json:"comment_id"`
	CommenterID   string `json:"commenter_id"`
	CommenterName string `json:"commenter_name"`
	Excerpt       string `json:"excerpt"`
}

type RatingPayload struct {
	VehicleID string `json:"vehicle_id"`
	RaterID   string `json:"rater_id"`
	RaterName string `json:"rater_name"`
	Score     int    `json:"score"`
}

type ChatPayload struct {
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`
	SenderID       string `json:"sender_id"`
	SenderName     string `json:"sender_name"`
	Preview        string `json:"preview"`
}

func (FollowPayload) Type() NotificationType  { return FollowType }
func (CommentPayload) Type() NotificationType { return CommentType }
func (RatingPayload) Type() NotificationType  { return RatingType }
func (ChatPayload) Type() NotificationType    { return ChatType }

// DecodePayload resolves raw into the payload struct of t.
func DecodePayload(t NotificationType, raw []byte) (Payload, error) {
	var (
		p   Payload
		err error
	)
	switch t {
	case FollowType:
		var v FollowPayload
		err = json.Unmarshal(raw, &v)
		p = v
	case CommentType:
		var v CommentPayload
		err = json.Unmarshal(raw, &v)
		p = v
	case RatingType:
		var v RatingPayload
		err = json.Unmarshal(raw, &v)
		p = v
	case ChatType:
		var v ChatPayload
		err = json.Unmarshal(raw, &v)
		p = v
	default:
		return nil, fmt.Errorf("unknown notification type %q", t)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", t, err)
	}
	return p, nil
}

// Event is one notification on its way to a recipient.
type Event struct {
	ID        string
	Recipient string
	Title     string
	Body      string
	Payload   Payload
	CreatedAt time.Time
}

func (e Event) Type() NotificationType {
	if e.Payload == nil {
		return ""
	}
	return e.Payload.Type()
}

type eventEnvelope struct {
	ID        string           `json:"id"`
	Recipient string           `json:"recipient"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Body      string           `json:"body"`
	Payload   json.RawMessage  `json:"payload"`
	CreatedAt time.Time        `json:"created_at"`
}

func (e Event) MarshalJSON() ([]byte, error) {
	if e.Payload == nil {
		return nil, fmt.Errorf("notification %s has no payload", e.ID)
	}
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(eventEnvelope{
		ID:        e.ID,
		Recipient: e.Recipient,
		Type:      e.Payload.Type(),
		Title:     e.Title,
		Body:      e.Body,
		Payload:   payload,
		CreatedAt: e.CreatedAt,
	})
}

func (e *Event) UnmarshalJSON(data []byte) error {
	var env eventEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	payload, err := DecodePayload(env.Type, env.Payload)
	if err != nil {
		return err
	}
	*e = Event{
		ID:        env.ID,
		Recipient: env.Recipient,
		Title:     env.Title,
		Body:      env.Body,
		Payload:   payload,
		CreatedAt: env.CreatedAt,
	}
	return nil
}

// pushData flattens the payload into FCM data fields.
func pushData(e Event) map[string]string {
	data := map[string]string{
		"notification_id": e.ID,
		"type":            string(e.Type()),
	}
	switch p := e.Payload.(type) {
	case FollowPayload:
		data["follower_id"] = p.FollowerID
	case CommentPayload:
		data["post_id"] = p.PostID
		data["comment_id"] = p.CommentID
	case RatingPayload:
		data["vehicle_id"] = p.VehicleID
		data["score"] = fmt.Sprintf("%d", p.Score)
	case ChatPayload:
		data["conversation_id"] = p.ConversationID
		data["message_id"] = p.MessageID
	}
	return data
}
