package handler

import (
	"context"
	"net/http"
	"testing"

	messagingapp "github.com/cryptonexus/backend/internal/application/messaging"
	"github.com/cryptonexus/backend/internal/domain/catalog"
	"github.com/cryptonexus/backend/internal/domain/identity"
	"github.com/cryptonexus/backend/internal/domain/messaging"
	"github.com/cryptonexus/backend/internal/infrastructure/persistence"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type messagingFixture struct {
	users     *persistence.GormUserRepository
	products  *persistence.GormProductRepository
	publisher *recordingPublisher
	handler   *MessagingHandler
}

func newMessagingFixture(t *testing.T) *messagingFixture {
	t.Helper()
	db := newSQLiteDB(t)
	users := persistence.NewGormUserRepository(db)
	products := persistence.NewGormProductRepository(db)
	publisher := &recordingPublisher{}
	service := messagingapp.NewConversationService(
		persistence.NewGormConversationRepository(db), persistence.NewGormMessageRepository(db),
		users, products, persistence.NewGormTransactionManager(db), publisher, zap.NewNop(),
	)
	return &messagingFixture{
		users:     users,
		products:  products,
		publisher: publisher,
		handler:   NewMessagingHandler(service),
	}
}

func (f *messagingFixture) engine(userID uuid.UUID) *gin.Engine {
	r := newTestRouter(&userID, "buyer")
	r.GET("/messaging/conversations", f.handler.ListConversations)
	r.POST("/messaging/conversations", f.handler.CreateConversation)
	r.POST("/messaging/conversations/create-product", f.handler.CreateForProduct)
	r.GET("/messaging/conversations/product/:product_id", f.handler.GetForProduct)
	r.GET("/messaging/conversations/:id", f.handler.GetConversation)
	r.GET("/messaging/conversations/:id/messages", f.handler.ListMessages)
	r.POST("/messaging/conversations/:id/messages", f.handler.SendMessage)
	r.POST("/messaging/conversations/:id/mark-read", f.handler.MarkRead)
	return r
}

func (f *messagingFixture) user(t *testing.T, username string, userType identity.UserType) *identity.User {
	t.Helper()
	u, err := identity.NewUser(username, username+"@example.com", "Password123!", userType)
	require.NoError(t, err)
	require.NoError(t, f.users.Create(context.Background(), u))
	return u
}

func (f *messagingFixture) listing(t *testing.T, vendorID uuid.UUID) *catalog.Product {
	t.Helper()
	product, err := catalog.NewProduct(vendorID, catalog.ProductDetails{
		CategoryID:  uuid.New(),
		Title:       "VPN subscription",
		Price:       decimal.NewFromInt(12),
		Quantity:    5,
		Credentials: "vpn:secret",
	})
	require.NoError(t, err)
	require.NoError(t, product.Approve())
	require.NoError(t, f.products.Save(context.Background(), product))
	return product
}

func TestMessagingHandler_ProductConversation(t *testing.T) {
	f := newMessagingFixture(t)
	buyer := f.user(t, "buyer_one", identity.UserTypeBuyer)
	seller := f.user(t, "seller_one", identity.UserTypeVendor)
	product := f.listing(t, seller.ID)

	w := doRequest(f.engine(buyer.ID), http.MethodPost, "/messaging/conversations/create-product", map[string]any{
		"product_id": product.ID,
		"message":    "Is the account region locked?",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var conv messagingapp.ConversationResponse
	decodeData(t, w, &conv)
	assert.Equal(t, "Inquiry about VPN subscription", conv.Subject)
	assert.ElementsMatch(t, []uuid.UUID{buyer.ID, seller.ID}, conv.ParticipantIDs)
	assert.Equal(t, "Is the account region locked?", conv.LastMessagePreview)
	assert.Contains(t, f.publisher.types(), messaging.EventTypeMessageSent)

	w = doRequest(f.engine(buyer.ID), http.MethodPost, "/messaging/conversations/create-product", map[string]any{
		"product_id": product.ID,
	})
	require.Equal(t, http.StatusOK, w.Code, "the existing conversation is reused")
	var reused messagingapp.ConversationResponse
	decodeData(t, w, &reused)
	assert.Equal(t, conv.ID, reused.ID)

	w = doRequest(f.engine(buyer.ID), http.MethodGet, "/messaging/conversations/product/"+product.ID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(f.engine(buyer.ID), http.MethodPost, "/messaging/conversations/create-product", map[string]any{
		"product_id": uuid.New(),
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMessagingHandler_Exchange(t *testing.T) {
	f := newMessagingFixture(t)
	buyer := f.user(t, "buyer_two", identity.UserTypeBuyer)
	seller := f.user(t, "seller_two", identity.UserTypeVendor)
	outsider := f.user(t, "outsider", identity.UserTypeBuyer)

	w := doRequest(f.engine(buyer.ID), http.MethodPost, "/messaging/conversations", map[string]any{
		"participant_id":  seller.ID,
		"subject":         "Bulk pricing",
		"initial_message": "Ten keys at once?",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var conv messagingapp.ConversationResponse
	decodeData(t, w, &conv)
	base := "/messaging/conversations/" + conv.ID.String()

	w = doRequest(f.engine(seller.ID), http.MethodGet, "/messaging/conversations", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var inbox []messagingapp.ConversationResponse
	decodeData(t, w, &inbox)
	require.Len(t, inbox, 1)
	assert.Equal(t, int64(1), inbox[0].UnreadCount)

	w = doRequest(f.engine(seller.ID), http.MethodPost, base+"/messages", map[string]any{"content": "Sure, 10% off"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var reply messagingapp.MessageResponse
	decodeData(t, w, &reply)
	assert.Equal(t, buyer.ID, reply.RecipientID)

	w = doRequest(f.engine(seller.ID), http.MethodPost, base+"/mark-read", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var marked messagingapp.MarkReadResponse
	decodeData(t, w, &marked)
	assert.Equal(t, int64(1), marked.Marked)

	w = doRequest(f.engine(buyer.ID), http.MethodGet, base+"/messages?page_size=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeResponse(t, w)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, int64(2), resp.Meta.Total)
	assert.Equal(t, 2, resp.Meta.TotalPages)

	for _, path := range []string{base, base + "/messages"} {
		w = doRequest(f.engine(outsider.ID), http.MethodGet, path, nil)
		assert.Equal(t, http.StatusNotFound, w.Code, "%s is hidden from non-participants", path)
	}
	w = doRequest(f.engine(outsider.ID), http.MethodPost, base+"/messages", map[string]any{"content": "hi"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(f.engine(buyer.ID), http.MethodPost, base+"/messages", map[string]any{"content": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMessagingHandler_CreateConversation_Rejected(t *testing.T) {
	f := newMessagingFixture(t)
	buyer := f.user(t, "buyer_three", identity.UserTypeBuyer)

	w := doRequest(f.engine(buyer.ID), http.MethodPost, "/messaging/conversations", map[string]any{
		"participant_id": buyer.ID,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code, "no conversation with yourself")

	w = doRequest(f.engine(buyer.ID), http.MethodPost, "/messaging/conversations", map[string]any{
		"participant_id": uuid.New(),
	})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(f.engine(buyer.ID), http.MethodGet, "/messaging/conversations/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
