package realtime

import "encoding/json"

// Frame types understood by the hub itself. Any other type is dispatched to
// a handler registered with Hub.On.
const (
	TypeAuthenticate  = "authenticate"
	TypeAuthenticated = "authenticated"
	TypeJoin          = "join"
	TypeJoined        = "joined"
	TypeLeave         = "leave"
	TypeLeft          = "left"
	TypeError         = "error"
)

// Frame is the JSON envelope exchanged over the socket.
type Frame struct {
	Type string          `json:"type"`
	Room string          `json:"room,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

// NewFrame builds a frame with data encoded as JSON.
func NewFrame(typ, room string, data interface{}) (Frame, error) {
	f := Frame{Type: typ, Room: room}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return Frame{}, err
		}
		f.Data = raw
	}
	return f, nil
}

// Decode unmarshals the frame payload into v.
func (f Frame) Decode(v interface{}) error {
	if len(f.Data) == 0 {
		return json.Unmarshal([]byte("null"), v)
	}
	return json.Unmarshal(f.Data, v)
}

func errorFrame(message string) []byte {
	f, _ := NewFrame(TypeError, "", map[string]string{"message": message})
	b, _ := json.Marshal(f)
	return b
}
