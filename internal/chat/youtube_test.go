package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

type fakeLiveChat struct {
	chatID string
	pages  []*youtube.LiveChatMessageListResponse
	errs   []error
	tokens []string
	calls  int
}

func (f *fakeLiveChat) ActiveChatID(_ context.Context, videoID string) (string, error) {
	if f.chatID == "" {
		return "", ErrNoLiveChat
	}
	return f.chatID, nil
}

func (f *fakeLiveChat) ListMessages(_ context.Context, chatID, pageToken string) (*youtube.LiveChatMessageListResponse, error) {
	i := f.calls
	f.calls++
	f.tokens = append(f.tokens, pageToken)
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	if i >= len(f.pages) {
		return &youtube.LiveChatMessageListResponse{NextPageToken: pageToken}, nil
	}
	return f.pages[i], nil
}

func textItem(author, text string) *youtube.LiveChatMessage {
	return &youtube.LiveChatMessage{
		Snippet:       &youtube.LiveChatMessageSnippet{Type: "textMessageEvent", DisplayMessage: text},
		AuthorDetails: &youtube.LiveChatMessageAuthorDetails{DisplayName: author},
	}
}

func page(token string, items ...*youtube.LiveChatMessage) *youtube.LiveChatMessageListResponse {
	return &youtube.LiveChatMessageListResponse{NextPageToken: token, Items: items}
}

func newFakeYouTube(api *fakeLiveChat, skipBacklog bool) *YouTube {
	y := NewYouTube(Options{APIKey: "key", PollInterval: time.Millisecond, SkipBacklog: skipBacklog})
	y.newAPI = func(context.Context, string) (liveChatAPI, error) { return api, nil }
	return y
}

const video = "https://youtu.be/dQw4w9WgXcQ"

func TestYouTubeSkipsBacklog(t *testing.T) {
	api := &fakeLiveChat{chatID: "chat1", pages: []*youtube.LiveChatMessageListResponse{
		page("t1", textItem("viejo", "mensaje viejo")),
		page("t2", textItem("ana", "hola"), textItem("luis", "buenas")),
	}}
	y := newFakeYouTube(api, true)
	require.NoError(t, y.Connect(context.Background(), video))

	msgs, err := y.Poll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, msgs, "backlog page")

	msgs, err = y.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Message{{"ana", "hola"}, {"luis", "buenas"}}, msgs)
	assert.Equal(t, []string{"", "t1"}, api.tokens)
}

func TestYouTubeKeepsBacklog(t *testing.T) {
	api := &fakeLiveChat{chatID: "chat1", pages: []*youtube.LiveChatMessageListResponse{
		page("t1", textItem("viejo", "mensaje viejo")),
	}}
	y := newFakeYouTube(api, false)
	require.NoError(t, y.Connect(context.Background(), video))

	msgs, err := y.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Message{{"viejo", "mensaje viejo"}}, msgs)
}

func TestYouTubeFiltersEvents(t *testing.T) {
	sponsor := &youtube.LiveChatMessage{Snippet: &youtube.LiveChatMessageSnippet{Type: "newSponsorEvent", DisplayMessage: "nuevo miembro"}}
	superChat := &youtube.LiveChatMessage{
		Snippet:       &youtube.LiveChatMessageSnippet{Type: "superChatEvent", DisplayMessage: "gracias"},
		AuthorDetails: &youtube.LiveChatMessageAuthorDetails{DisplayName: "eva"},
	}
	api := &fakeLiveChat{chatID: "chat1", pages: []*youtube.LiveChatMessageListResponse{
		page("t1", sponsor, nil, superChat, textItem("ana", "")),
	}}
	y := newFakeYouTube(api, false)
	require.NoError(t, y.Connect(context.Background(), video))

	msgs, err := y.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Message{{"eva", "gracias"}}, msgs)
}

func TestYouTubeChatEnds(t *testing.T) {
	tests := []struct {
		name string
		api  *fakeLiveChat
	}{
		{"offline", &fakeLiveChat{chatID: "c", pages: []*youtube.LiveChatMessageListResponse{
			{OfflineAt: "2024-01-01T00:00:00Z", Items: []*youtube.LiveChatMessage{textItem("ana", "adios")}},
		}}},
		{"ended event", &fakeLiveChat{chatID: "c", pages: []*youtube.LiveChatMessageListResponse{
			page("t", textItem("ana", "adios"), &youtube.LiveChatMessage{Snippet: &youtube.LiveChatMessageSnippet{Type: "chatEndedEvent"}}),
		}}},
		{"not found", &fakeLiveChat{chatID: "c", errs: []error{apiError(http.StatusNotFound, "liveChatNotFound")}}},
		{"forbidden", &fakeLiveChat{chatID: "c", errs: []error{apiError(http.StatusForbidden, "forbidden")}}},
		{"disabled", &fakeLiveChat{chatID: "c", errs: []error{apiError(http.StatusForbidden, "liveChatDisabled")}}},
		{"ended reason", &fakeLiveChat{chatID: "c", errs: []error{apiError(http.StatusBadRequest, "liveChatEnded")}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			y := newFakeYouTube(tt.api, false)
			require.NoError(t, y.Connect(context.Background(), video))
			require.True(t, y.IsAlive())

			_, err := y.Poll(context.Background())
			require.NoError(t, err)
			assert.False(t, y.IsAlive())
		})
	}
}

func apiError(code int, reason string) *googleapi.Error {
	return &googleapi.Error{Code: code, Errors: []googleapi.ErrorItem{{Reason: reason}}}
}

func TestYouTubeTransientError(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"server error", &googleapi.Error{Code: http.StatusInternalServerError}},
		{"quota exceeded", apiError(http.StatusForbidden, "quotaExceeded")},
		{"rate limited", apiError(http.StatusForbidden, "rateLimitExceeded")},
		{"bare forbidden", &googleapi.Error{Code: http.StatusForbidden}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeLiveChat{chatID: "c", errs: []error{tt.err}}
			y := newFakeYouTube(api, false)
			require.NoError(t, y.Connect(context.Background(), video))

			_, err := y.Poll(context.Background())
			assert.ErrorIs(t, err, tt.err)
			assert.True(t, y.IsAlive())
		})
	}
}

func TestYouTubeConnectErrors(t *testing.T) {
	var cerr *ConnectionError

	y := newFakeYouTube(&fakeLiveChat{chatID: "c"}, false)
	require.ErrorAs(t, y.Connect(context.Background(), "https://example.com"), &cerr)
	assert.ErrorIs(t, cerr, ErrInvalidVideo)

	y = newFakeYouTube(&fakeLiveChat{}, false)
	require.ErrorAs(t, y.Connect(context.Background(), video), &cerr)
	assert.ErrorIs(t, cerr, ErrNoLiveChat)

	y = NewYouTube(Options{})
	require.ErrorAs(t, y.Connect(context.Background(), video), &cerr, "missing API key")

	_, err := NewYouTube(Options{}).Poll(context.Background())
	assert.Error(t, err, "poll before connect")
}

func TestYouTubeDisconnect(t *testing.T) {
	y := newFakeYouTube(&fakeLiveChat{chatID: "c"}, false)
	require.NoError(t, y.Connect(context.Background(), video))
	require.NoError(t, y.Disconnect())
	assert.False(t, y.IsAlive())
}

func TestDataAPI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/videos"):
			if r.URL.Query().Get("id") != "dQw4w9WgXcQ" {
				json.NewEncoder(w).Encode(map[string]any{"items": []any{}})
				return
			}
			json.NewEncoder(w).Encode(map[string]any{"items": []any{
				map[string]any{"liveStreamingDetails": map[string]any{"activeLiveChatId": "chat-123"}},
			}})
		case strings.HasSuffix(r.URL.Path, "/liveChat/messages"):
			if r.URL.Query().Get("liveChatId") != "chat-123" {
				http.Error(w, `{"error":{"code":404,"message":"gone"}}`, http.StatusNotFound)
				return
			}
			json.NewEncoder(w).Encode(map[string]any{
				"nextPageToken":         "next",
				"pollingIntervalMillis": 2000,
				"items": []any{map[string]any{
					"snippet":       map[string]any{"type": "textMessageEvent", "displayMessage": "hola"},
					"authorDetails": map[string]any{"displayName": "ana"},
				}},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	ctx := context.Background()
	api, err := newDataAPI(ctx, "key", option.WithEndpoint(srv.URL+"/"))
	require.NoError(t, err)

	chatID, err := api.ActiveChatID(ctx, "dQw4w9WgXcQ")
	require.NoError(t, err)
	assert.Equal(t, "chat-123", chatID)

	_, err = api.ActiveChatID(ctx, "aaaaaaaaaaa")
	assert.Error(t, err)

	resp, err := api.ListMessages(ctx, chatID, "")
	require.NoError(t, err)
	assert.Equal(t, "next", resp.NextPageToken)
	assert.EqualValues(t, 2000, resp.PollingIntervalMillis)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "hola", resp.Items[0].Snippet.DisplayMessage)

	_, err = api.ListMessages(ctx, "other", "")
	assert.True(t, chatGone(err))

	_, err = newDataAPI(ctx, "")
	assert.Error(t, err)
	assert.False(t, chatGone(errors.New("plain")))
}
