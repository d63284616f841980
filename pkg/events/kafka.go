package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

type EventType string

const (
	EventTypeRoomCreated       EventType = "room_created"
	EventTypeRoomStatusChanged EventType = "room_status_changed"
	EventTypeSongAdded         EventType = "song_added"
	EventTypeSongRemoved       EventType = "song_removed"
	EventTypeVoteRecorded      EventType = "vote_recorded"
	EventTypeCommentAdded      EventType = "comment_added"
)

// Event is the envelope written to the room event topic. Payload holds the
// type-specific body as raw JSON.
type Event struct {
	Type      EventType       `json:"type"`
	RoomID    string          `json:"room_id"`
	UserID    string          `json:"user_id"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

type KafkaClient struct {
	writer *kafka.Writer
	reader *kafka.Reader
}

func NewKafkaClient(brokers []string, topic string, groupID string) *KafkaClient {
	writer := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		Topic:       topic,
		GroupID:     groupID,
		StartOffset: kafka.LastOffset,
	})

	return &KafkaClient{
		writer: writer,
		reader: reader,
	}
}

// PublishEvent writes one event to the room event topic, keyed by room id
// so events for a room stay ordered within a partition.
func (k *KafkaClient) PublishEvent(ctx context.Context, eventType EventType, roomID, userID string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	event := Event{
		Type:      eventType,
		RoomID:    roomID,
		UserID:    userID,
		Timestamp: time.Now(),
		Payload:   body,
	}

	eventJSON, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	key := roomID
	if key == "" {
		key = uuid.New().String()
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: eventJSON,
	}

	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}

	return nil
}

func (k *KafkaClient) ConsumeEvents(ctx context.Context, handler func(Event) error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			msg, err := k.reader.ReadMessage(ctx)
			if err != nil {
				return fmt.Errorf("failed to read message: %w", err)
			}

			var event Event
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal event: %w", err)
			}

			if err := handler(event); err != nil {
				return fmt.Errorf("failed to handle event: %w", err)
			}
		}
	}
}

func (k *KafkaClient) Close() error {
	if err := k.writer.Close(); err != nil {
		return fmt.Errorf("failed to close writer: %w", err)
	}
	if err := k.reader.Close(); err != nil {
		return fmt.Errorf("failed to close reader: %w", err)
	}
	return nil
}

// Event payload types

type RoomStatusPayload struct {
	OldStatus string `json:"old_status"`
	NewStatus string `json:"new_status"`
}

type SongAddedPayload struct {
	SongID string `json:"song_id"`
	Title  string `json:"title"`
}

type SongRemovedPayload struct {
	SongID string `json:"song_id"`
}

type VoteRecordedPayload struct {
	SongAID  string `json:"song_a_id"`
	SongBID  string `json:"song_b_id"`
	WinnerID string `json:"winner_id"`
}

type CommentAddedPayload struct {
	CommentID  string `json:"comment_id"`
	SongID     string `json:"song_id"`
	AuthorName string `json:"author_name"`
	Text       string `json:"text"`
}
