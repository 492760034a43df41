// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package event

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockSubscriber struct {
	err    error
	panics bool
	closed bool
}

func (m *mockSubscriber) Deliver(Event) error {
	if m.panics {
		panic("deliver exploded")
	}
	return m.err
}

func (m *mockSubscriber) Close() {
	m.closed = true
}

func TestDeliverFailureUnregisters(t *testing.T) {
	for _, sub := range []*mockSubscriber{
		{err: errors.New("deliver failed")},
		{panics: true},
	} {
		eb := NewEventBus(nil, nil)
		subId := eb.RegisterSubscriber("test.fail", sub)
		require.NotZero(t, subId)
		eb.Publish("test.fail", NewEvent("test.fail", "x"))
		eb.mu.RLock()
		_, exists := eb.subscribers["test.fail"][subId]
		eb.mu.RUnlock()
		assert.False(t, exists, "subscriber should be removed after deliver failure")
		assert.True(t, sub.closed)
		eb.Stop()
	}
}

func TestChannelSubscriberDeliverNonBlocking(t *testing.T) {
	const bufferSize = 5
	sub := newChannelSubscriber(bufferSize)
	for i := range bufferSize {
		require.NoError(t, sub.Deliver(NewEvent("test", i)))
	}
	require.ErrorIs(t, sub.Deliver(NewEvent("test", "overflow")), ErrSubscriberFull)
	sub.Close()
	sub.Close()
	// Delivery after close is silently dropped
	require.NoError(t, sub.Deliver(NewEvent("test", "closed")))
	count := 0
	for range sub.ch {
		count++
	}
	assert.Equal(t, bufferSize, count)
}

func TestFullSubscriberStaysRegistered(t *testing.T) {
	eb := NewEventBus(nil, nil)
	defer eb.Stop()
	subId, ch := eb.Subscribe("test.full")
	for i := range EventQueueSize + 1 {
		eb.Publish("test.full", NewEvent("test.full", i))
	}
	eb.mu.RLock()
	_, exists := eb.subscribers["test.full"][subId]
	eb.mu.RUnlock()
	assert.True(t, exists)
	assert.Len(t, ch, EventQueueSize)
}
