package db

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tikozap/backend/internal/models"
	"github.com/tikozap/backend/internal/quality"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	store, err := New(context.Background(), url)
	if err != nil {
		t.Fatalf("db connect: %v", err)
	}
	t.Cleanup(store.Close)
	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store
}

func TestStoreTurnLifecycle(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	tenant := "tenant-" + uuid.NewString()

	conv, err := store.EnsureConversation(ctx, models.Conversation{TenantID: tenant, Channel: models.ChannelWidget})
	if err != nil {
		t.Fatalf("ensure conversation: %v", err)
	}
	if conv.Status != models.StatusOpen {
		t.Fatalf("expected OPEN, got %s", conv.Status)
	}
	if _, err := store.EnsureConversation(ctx, models.Conversation{ID: conv.ID, TenantID: "someone-else"}); !errors.Is(err, ErrTenantMismatch) {
		t.Fatalf("expected tenant mismatch, got %v", err)
	}

	if _, err := store.InsertMessage(ctx, models.Message{ConversationID: conv.ID, Role: models.RoleCustomer, Text: "hello"}); err != nil {
		t.Fatalf("insert message: %v", err)
	}
	n, err := store.CountCustomerMessages(ctx, conv.ID)
	if err != nil || n != 1 {
		t.Fatalf("expected 1 customer message, got %d (%v)", n, err)
	}

	in := quality.Input{
		Transport:    quality.TransportInput{Twilio: &quality.TwilioMetrics{MOS: quality.Float(3.2)}},
		Conversation: quality.ConversationInput{Source: quality.SourceCanned},
	}
	report := models.NewQualityReport(conv.ID, tenant, nil, quality.SourceCanned, in.Transport.Twilio, quality.Evaluate(in))
	reply := models.Message{ConversationID: conv.ID, Role: models.RoleAssistant, Text: "A teammate will follow up.", Source: "canned", NeedsHuman: true}
	reply, report, err = store.SaveTurn(ctx, reply, report, models.StatusNeedsHuman)
	if err != nil {
		t.Fatalf("save turn: %v", err)
	}

	details, err := store.GetConversationDetails(ctx, conv.ID)
	if err != nil {
		t.Fatalf("details: %v", err)
	}
	if details.Conversation.Status != models.StatusNeedsHuman || len(details.Messages) != 2 || len(details.Reports) != 1 {
		t.Fatalf("unexpected details: %+v", details)
	}
	got := details.Reports[0]
	if got.MessageID == nil || *got.MessageID != reply.ID || got.Overall != 67 || got.Twilio == nil || *got.Twilio.MOS != 3.2 {
		t.Fatalf("unexpected stored report: %+v", got)
	}

	summary, err := store.QualitySummary(ctx, tenant)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.Reports != 1 || summary.Grades["C"] != 1 || summary.Sources["canned"] != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	if err := store.Handoff(ctx, conv.ID, "maya", "refund dispute"); err != nil {
		t.Fatalf("handoff: %v", err)
	}
	c, err := store.GetConversation(ctx, conv.ID)
	if err != nil || c.Status != models.StatusHuman || c.Assignee == nil || *c.Assignee != "maya" {
		t.Fatalf("unexpected conversation after handoff: %+v (%v)", c, err)
	}
	if err := store.SetConversationStatus(ctx, uuid.NewString(), models.StatusResolved); err == nil {
		t.Fatalf("expected error for unknown conversation")
	}
}

func TestStoreImportAndScoringQueue(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	tenant := "tenant-" + uuid.NewString()
	convID := uuid.NewString()
	now := time.Now().UTC().Truncate(time.Second)

	convs := []models.Conversation{{ID: convID, TenantID: tenant, Channel: models.ChannelWidget, Status: models.StatusOpen, CreatedAt: now}}
	msgs := []models.Message{
		{ID: uuid.NewString(), ConversationID: convID, Role: models.RoleCustomer, Text: "Where is my order?", Intent: "order_status", CreatedAt: now},
		{ID: uuid.NewString(), ConversationID: convID, Role: models.RoleAssistant, Text: "Please share your order number.", Source: "rule", UsedSSE: quality.Bool(true), CreatedAt: now.Add(time.Second)},
	}
	c, m, err := store.ImportConversations(ctx, convs, msgs)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if c != 1 || m != 2 {
		t.Fatalf("expected 1 conversation and 2 messages, got %d and %d", c, m)
	}

	pending, err := store.GetConversationsForScoring(ctx)
	if err != nil {
		t.Fatalf("scoring queue: %v", err)
	}
	found := false
	for _, p := range pending {
		if p.ID == convID {
			found = true
		}
	}
	if !found {
		t.Fatalf("imported conversation should be waiting for a score")
	}

	items, err := store.ListConversations(ctx, tenant, "", "order", 10, 0)
	if err != nil || len(items) != 1 {
		t.Fatalf("expected search to find the imported conversation, got %d (%v)", len(items), err)
	}
}

func TestStoreImportRejectsForeignConversation(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	convID := uuid.NewString()
	now := time.Now().UTC().Truncate(time.Second)

	owner := []models.Conversation{{ID: convID, TenantID: "tenant-" + uuid.NewString(), Channel: models.ChannelWidget, Status: models.StatusOpen, CreatedAt: now}}
	if _, _, err := store.ImportConversations(ctx, owner, nil); err != nil {
		t.Fatalf("seed import: %v", err)
	}

	intruder := []models.Conversation{{ID: convID, TenantID: "tenant-" + uuid.NewString(), Channel: models.ChannelWidget, Status: models.StatusOpen, CreatedAt: now}}
	msgs := []models.Message{{ID: uuid.NewString(), ConversationID: convID, Role: models.RoleCustomer, Text: "hello", CreatedAt: now}}
	if _, _, err := store.ImportConversations(ctx, intruder, msgs); !errors.Is(err, ErrTenantMismatch) {
		t.Fatalf("expected ErrTenantMismatch, got %v", err)
	}

	stored, err := store.ListMessages(ctx, convID)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(stored) != 0 {
		t.Fatalf("rejected import must not add messages, got %d", len(stored))
	}
}
