package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

// liveChatAPI is the part of the YouTube Data API the source uses.
type liveChatAPI interface {
	// ActiveChatID returns the live chat id of a video that is streaming.
	ActiveChatID(ctx context.Context, videoID string) (string, error)
	ListMessages(ctx context.Context, chatID, pageToken string) (*youtube.LiveChatMessageListResponse, error)
}

// ErrNoLiveChat is returned when a video has no active live chat.
var ErrNoLiveChat = errors.New("video has no active live chat")

// YouTube reads a live stream's chat through the YouTube Data API.
type YouTube struct {
	opts Options

	// newAPI is replaced in tests.
	newAPI func(ctx context.Context, apiKey string) (liveChatAPI, error)

	mu        sync.Mutex
	api       liveChatAPI
	chatID    string
	pageToken string
	alive     bool
	backlog   bool // next page is the backlog
	limiter   *rate.Limiter
}

// NewYouTube creates a YouTube source. Connect must be called before Poll.
func NewYouTube(opts Options) *YouTube {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	return &YouTube{opts: opts, newAPI: func(ctx context.Context, apiKey string) (liveChatAPI, error) {
		return newDataAPI(ctx, apiKey)
	}}
}

// Connect resolves identifier, a video URL or id, to its live chat.
func (y *YouTube) Connect(ctx context.Context, identifier string) error {
	fail := func(err error) error {
		return &ConnectionError{Source: "youtube", Identifier: identifier, Err: err}
	}

	videoID, err := VideoID(identifier)
	if err != nil {
		return fail(err)
	}
	api, err := y.newAPI(ctx, y.opts.APIKey)
	if err != nil {
		return fail(err)
	}
	chatID, err := api.ActiveChatID(ctx, videoID)
	if err != nil {
		return fail(err)
	}

	y.mu.Lock()
	defer y.mu.Unlock()
	y.api = api
	y.chatID = chatID
	y.pageToken = ""
	y.alive = true
	y.backlog = y.opts.SkipBacklog
	y.limiter = rate.NewLimiter(rate.Every(y.opts.PollInterval), 1)

	log.Info("Connected to live chat", "video", videoID)
	return nil
}

func (y *YouTube) IsAlive() bool {
	y.mu.Lock()
	defer y.mu.Unlock()
	return y.alive
}

// Poll fetches the next page of messages. Calls are spaced by the larger of
// the configured interval and the interval the server asks for.
func (y *YouTube) Poll(ctx context.Context) ([]Message, error) {
	y.mu.Lock()
	api, chatID, token, limiter := y.api, y.chatID, y.pageToken, y.limiter
	alive := y.alive
	y.mu.Unlock()

	if api == nil {
		return nil, errors.New("youtube: not connected")
	}
	if !alive {
		return nil, nil
	}
	if err := limiter.Wait(ctx); err != nil {
		return nil, err
	}

	resp, err := api.ListMessages(ctx, chatID, token)
	if err != nil {
		if chatGone(err) {
			log.Info("Live chat ended", "err", err)
			y.mu.Lock()
			y.alive = false
			y.mu.Unlock()
			return nil, nil
		}
		return nil, fmt.Errorf("youtube: list messages: %w", err)
	}

	y.mu.Lock()
	defer y.mu.Unlock()

	y.pageToken = resp.NextPageToken
	if wait := time.Duration(resp.PollingIntervalMillis) * time.Millisecond; wait > y.opts.PollInterval {
		y.limiter.SetLimit(rate.Every(wait))
	} else {
		y.limiter.SetLimit(rate.Every(y.opts.PollInterval))
	}
	if resp.OfflineAt != "" {
		y.alive = false
	}

	if y.backlog {
		y.backlog = false
		log.Debug("Skipped chat backlog", "messages", len(resp.Items))
		return nil, nil
	}

	msgs := make([]Message, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item == nil || item.Snippet == nil {
			continue
		}
		if item.Snippet.Type == "chatEndedEvent" {
			y.alive = false
			continue
		}
		if !spoken[item.Snippet.Type] || item.Snippet.DisplayMessage == "" {
			continue
		}
		author := ""
		if item.AuthorDetails != nil {
			author = item.AuthorDetails.DisplayName
		}
		msgs = append(msgs, Message{Author: author, Text: item.Snippet.DisplayMessage})
	}
	return msgs, nil
}

func (y *YouTube) Disconnect() error {
	y.mu.Lock()
	defer y.mu.Unlock()
	y.api = nil
	y.alive = false
	return nil
}

// Message types that carry something a viewer typed.
var spoken = map[string]bool{
	"textMessageEvent": true,
	"superChatEvent":   true,
}

// Error reasons that mean the chat is over. Quota and rate limit errors
// share the 403 status but are only transient.
var goneReasons = map[string]bool{
	"liveChatEnded":    true,
	"liveChatNotFound": true,
	"liveChatDisabled": true,
	"forbidden":        true,
}

// chatGone reports whether err means the chat no longer exists.
func chatGone(err error) bool {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return false
	}
	for _, item := range gerr.Errors {
		if goneReasons[item.Reason] {
			return true
		}
	}
	return false
}

// dataAPI is liveChatAPI backed by the YouTube Data API v3.
type dataAPI struct {
	svc *youtube.Service
}

func newDataAPI(ctx context.Context, apiKey string, opts ...option.ClientOption) (liveChatAPI, error) {
	if apiKey == "" {
		return nil, errors.New("YOUTUBE_API_KEY is not set")
	}
	svc, err := youtube.NewService(ctx, append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, err
	}
	return &dataAPI{svc: svc}, nil
}

func (d *dataAPI) ActiveChatID(ctx context.Context, videoID string) (string, error) {
	resp, err := d.svc.Videos.List([]string{"liveStreamingDetails"}).Id(videoID).Context(ctx).Do()
	if err != nil {
		return "", err
	}
	if len(resp.Items) == 0 {
		return "", fmt.Errorf("video %s not found", videoID)
	}
	details := resp.Items[0].LiveStreamingDetails
	if details == nil || details.ActiveLiveChatId == "" {
		return "", ErrNoLiveChat
	}
	return details.ActiveLiveChatId, nil
}

func (d *dataAPI) ListMessages(ctx context.Context, chatID, pageToken string) (*youtube.LiveChatMessageListResponse, error) {
	call := d.svc.LiveChatMessages.List(chatID, []string{"snippet", "authorDetails"}).Context(ctx)
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}
	return call.Do()
}
