package gatt

// Write records one call made on FakeLink.
type Write struct {
	ID    ID
	Value []byte
}

// FakeLink is a test double recording database writes and notifications.
type FakeLink struct {
	// Values holds the current database contents.
	Values map[ID][]byte

	// Writes contains every successful SetValue call in order.
	Writes []Write

	// Notifications contains every successful Notify call in order.
	Notifications []Write

	// SetValueError, if set, will be returned by SetValue.
	SetValueError error

	// NotifyError, if set, will be returned by Notify.
	NotifyError error
}

// NewFakeLink creates an empty FakeLink.
func NewFakeLink() *FakeLink {
	return &FakeLink{Values: make(map[ID][]byte)}
}

// SetValue records a database write.
func (f *FakeLink) SetValue(id ID, value []byte) error {
	if f.SetValueError != nil {
		return f.SetValueError
	}
	v := append([]byte(nil), value...)
	f.Values[id] = v
	f.Writes = append(f.Writes, Write{ID: id, Value: v})
	return nil
}

// Notify records a notification.
func (f *FakeLink) Notify(id ID, value []byte) error {
	if f.NotifyError != nil {
		return f.NotifyError
	}
	f.Notifications = append(f.Notifications, Write{ID: id, Value: append([]byte(nil), value...)})
	return nil
}

// WritesFor returns the recorded writes for one characteristic.
func (f *FakeLink) WritesFor(id ID) []Write {
	var out []Write
	for _, w := range f.Writes {
		if w.ID == id {
			out = append(out, w)
		}
	}
	return out
}

// NotificationsFor returns the recorded notifications for one characteristic.
func (f *FakeLink) NotificationsFor(id ID) []Write {
	var out []Write
	for _, w := range f.Notifications {
		if w.ID == id {
			out = append(out, w)
		}
	}
	return out
}

// Reset clears recorded calls and errors.
func (f *FakeLink) Reset() {
	f.Values = make(map[ID][]byte)
	f.Writes = nil
	f.Notifications = nil
	f.SetValueError = nil
	f.NotifyError = nil
}
