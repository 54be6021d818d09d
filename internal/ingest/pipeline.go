// ChatPulse - Real-Time Chat Analytics and Hype Detection
// Copyright 2026 ChatPulse Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/chatpulse/chatpulse

package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"

	"github.com/chatpulse/chatpulse/internal/buffer"
	"github.com/chatpulse/chatpulse/internal/logging"
	"github.com/chatpulse/chatpulse/internal/metrics"
	"github.com/chatpulse/chatpulse/internal/models"
)

// TopicChatMessages is the in-process topic between the IRC client and the
// buffer writer.
const TopicChatMessages = "chat.messages"

// Pipeline decouples IRC reads from buffer writes through an in-process
// pub/sub channel. A slow append never backpressures the network read loop,
// and the router's middleware gives retries and panic isolation on the
// consumer side.
type Pipeline struct {
	pubsub *gochannel.GoChannel
	router *message.Router
	buf    *buffer.Buffer
}

// NewPipeline builds the pub/sub channel and the consuming router.
func NewPipeline(buf *buffer.Buffer) (*Pipeline, error) {
	logger := logging.NewWatermillAdapter()

	pubsub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: 1024,
	}, logger)

	router, err := message.NewRouter(message.RouterConfig{
		CloseTimeout: 10 * time.Second,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create router: %w", err)
	}

	router.AddMiddleware(middleware.Recoverer)
	retry := middleware.Retry{
		MaxRetries:      3,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     time.Second,
		Multiplier:      2.0,
		Logger:          logger,
	}
	router.AddMiddleware(retry.Middleware)

	p := &Pipeline{pubsub: pubsub, router: router, buf: buf}

	router.AddNoPublisherHandler(
		"buffer-appender",
		TopicChatMessages,
		pubsub,
		p.appendToBuffer,
	)

	return p, nil
}

// Publish hands one chat message to the pipeline. Used as the IRC client's
// message handler.
func (p *Pipeline) Publish(chat models.ChatMessage) {
	payload, err := json.Marshal(chat)
	if err != nil {
		logging.Error().Err(err).Msg("failed to marshal chat message")
		return
	}
	msg := message.NewMessage(chat.ID, payload)
	if err := p.pubsub.Publish(TopicChatMessages, msg); err != nil {
		logging.Warn().Err(err).Msg("failed to publish chat message")
	}
}

// appendToBuffer is the consuming handler: decode and append.
func (p *Pipeline) appendToBuffer(msg *message.Message) error {
	var chat models.ChatMessage
	if err := json.Unmarshal(msg.Payload, &chat); err != nil {
		// Malformed payloads are not retryable.
		logging.Error().Err(err).Str("uuid", msg.UUID).Msg("dropping undecodable chat message")
		return nil
	}

	p.buf.Append(chat)
	metrics.BufferOccupancy.WithLabelValues(chat.Channel).Set(float64(p.buf.Len(chat.Channel)))
	return nil
}

// Run runs the consuming router until the context is canceled. Designed for
// suture supervision.
func (p *Pipeline) Run(ctx context.Context) error {
	return p.router.Run(ctx)
}

// Close shuts down the router and the pub/sub channel.
func (p *Pipeline) Close() error {
	if err := p.router.Close(); err != nil {
		return err
	}
	return p.pubsub.Close()
}
