package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/educonnect/push-engine/internal/dispatch"
	"github.com/educonnect/push-engine/pkg/messaging"
)

var (
	emitType           string
	emitUserID         string
	emitUserEmail      string
	emitMeetingID      string
	emitConversationID string
	emitAssignmentID   string
	emitSessionID      string
)

var emitCmd = &cobra.Command{
	Use:   "emit",
	Short: "Publish a test platform event to the event bus",
	Long:  `Publishes a synthetic business event to Kafka so the full dispatcher path can be exercised end to end, not just the push queue.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		brokers := viper.GetStringSlice("kafka_brokers")
		if len(brokers) == 0 {
			brokers = []string{"localhost:9092"}
		}
		topic := viper.GetString("kafka_topic")
		if topic == "" {
			topic = "platform.events"
		}

		event, err := buildTestEvent()
		if err != nil {
			return err
		}

		body, err := json.Marshal(event)
		if err != nil {
			return err
		}

		producer := messaging.NewKafkaProducer(brokers, topic)
		defer producer.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := producer.PublishEvent(ctx, emitUserID, string(event.Type), body); err != nil {
			return fmt.Errorf("failed to publish event: %w", err)
		}

		fmt.Printf("Published %s event %s\n", event.Type, event.ID)
		return nil
	},
}

func buildTestEvent() (*dispatch.Event, error) {
	switch dispatch.EventType(emitType) {
	case dispatch.EventMessageCreated:
		return dispatch.NewEvent(dispatch.EventMessageCreated, dispatch.MessageEventData{
			ConversationID: emitConversationID,
			SenderName:     "Test Sender",
			RecipientID:    emitUserID,
			Preview:        "This is a test message",
		})
	case dispatch.EventCallInitiated, dispatch.EventCallMissed:
		return dispatch.NewEvent(dispatch.EventType(emitType), dispatch.CallEventData{
			MeetingID:   emitMeetingID,
			CallerName:  "Test Caller",
			CalleeID:    emitUserID,
			CalleeEmail: emitUserEmail,
		})
	case dispatch.EventAssignmentCreated, dispatch.EventAssignmentGraded:
		return dispatch.NewEvent(dispatch.EventType(emitType), dispatch.AssignmentEventData{
			AssignmentID: emitAssignmentID,
			Title:        "Test Assignment",
			StudentID:    emitUserID,
			StudentEmail: emitUserEmail,
			Grade:        "A",
		})
	case dispatch.EventSessionReminder:
		return dispatch.NewEvent(dispatch.EventSessionReminder, dispatch.SessionEventData{
			SessionID: emitSessionID,
			StudentID: emitUserID,
			TutorName: "Test Tutor",
			StartsAt:  time.Now().Add(15 * time.Minute).Format(time.RFC3339),
		})
	default:
		return nil, fmt.Errorf("unknown event type %q", emitType)
	}
}

func init() {
	emitCmd.Flags().StringVar(&emitType, "type", string(dispatch.EventMessageCreated), "platform event type")
	emitCmd.Flags().StringVar(&emitUserID, "user-id", "test-user", "recipient user ID")
	emitCmd.Flags().StringVar(&emitUserEmail, "user-email", "", "recipient email for email-routed events")
	emitCmd.Flags().StringVar(&emitMeetingID, "meeting-id", "test-meeting", "meeting ID for call events")
	emitCmd.Flags().StringVar(&emitConversationID, "conversation-id", "test-conversation", "conversation ID for message events")
	emitCmd.Flags().StringVar(&emitAssignmentID, "assignment-id", "test-assignment", "assignment ID for assignment events")
	emitCmd.Flags().StringVar(&emitSessionID, "session-id", "test-session", "session ID for session events")
	rootCmd.AddCommand(emitCmd)
}
