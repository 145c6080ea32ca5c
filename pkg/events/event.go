/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package events

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Kind identifies what happened to an account. Values outside the known set
// are preserved on decode so the consumer can report and drop them.
type Kind string

const (
	KindCreated Kind = "USER_CREATED"
	KindDeleted Kind = "USER_DELETED"
)

// DefaultName is used when an event carries no display name.
const DefaultName = "User"

// Known reports whether k is one of the kinds the pipeline dispatches on.
func (k Kind) Known() bool {
	return k == KindCreated || k == KindDeleted
}

// LifecycleEvent is the message published after an account change has been
// committed. It is a value type and is not modified after construction.
type LifecycleEvent struct {
	Kind      Kind      `json:"eventType"`
	AccountID int64     `json:"userId"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Age       *int      `json:"age"`
	Timestamp time.Time `json:"timestamp"`
}

// NewLifecycleEvent builds an event stamped with the current time. An empty
// name is replaced by DefaultName.
func NewLifecycleEvent(kind Kind, accountID int64, email, name string, age *int) LifecycleEvent {
	if name == "" {
		name = DefaultName
	}
	var a *int
	if age != nil {
		v := *age
		a = &v
	}
	return LifecycleEvent{
		Kind:      kind,
		AccountID: accountID,
		Email:     email,
		Name:      name,
		Age:       a,
		Timestamp: time.Now().UTC(),
	}
}

// Key is the partition key: the account id in decimal. All events of one
// account share it and therefore one partition.
func (e LifecycleEvent) Key() string {
	return strconv.FormatInt(e.AccountID, 10)
}

// Encode serializes the event into its JSON wire format.
func (e LifecycleEvent) Encode() ([]byte, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal lifecycle event: %w", err)
	}
	return b, nil
}

// timestampLayouts are tried in order. Zone-less values are taken as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// UnmarshalJSON decodes the wire format. The timestamp is informational:
// RFC3339, zone-less ISO-8601 and [y,m,d,h,min,s,nanos] arrays are accepted
// and anything else leaves it zero instead of failing the event.
func (e *LifecycleEvent) UnmarshalJSON(data []byte) error {
	type wire LifecycleEvent
	var aux struct {
		wire
		Timestamp json.RawMessage `json:"timestamp"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*e = LifecycleEvent(aux.wire)
	e.Timestamp = parseTimestamp(aux.Timestamp)
	return nil
}

func parseTimestamp(raw json.RawMessage) time.Time {
	if len(raw) == 0 {
		return time.Time{}
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		for _, layout := range timestampLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t
			}
		}
		return time.Time{}
	}
	var parts []int
	if err := json.Unmarshal(raw, &parts); err != nil || len(parts) < 3 {
		return time.Time{}
	}
	for len(parts) < 7 {
		parts = append(parts, 0)
	}
	return time.Date(parts[0], time.Month(parts[1]), parts[2], parts[3], parts[4], parts[5], parts[6], time.UTC)
}

// Decode parses a wire payload. Only eventType and email are required; an
// unreadable timestamp does not reject the event.
func Decode(payload []byte) (LifecycleEvent, error) {
	var e LifecycleEvent
	if err := json.Unmarshal(payload, &e); err != nil {
		return e, fmt.Errorf("failed to unmarshal lifecycle event: %w", err)
	}
	if e.Kind == "" {
		return e, fmt.Errorf("lifecycle event has no eventType")
	}
	if e.Email == "" {
		return e, fmt.Errorf("lifecycle event %s has no email", e.Kind)
	}
	return e, nil
}
