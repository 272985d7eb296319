package websocket

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vishaltelangre/tic-tac-toe/internal/entity"
)

func newTestReadWriter() (*bufio.ReadWriter, *bytes.Buffer) {
	buf := &bytes.Buffer{}

	return bufio.NewReadWriter(bufio.NewReader(buf), bufio.NewWriter(buf)), buf
}

// maskedClientFrame builds a masked text frame the way a browser would.
func maskedClientFrame(payload []byte) []byte {
	mask := []byte{0x1f, 0x2e, 0x3d, 0x4c}

	frame := []byte{0x80 | opCodeText, 0x80 | byte(len(payload))}
	frame = append(frame, mask...)

	for i, b := range payload {
		frame = append(frame, b^mask[i%4])
	}

	return frame
}

func TestSendMessage(t *testing.T) {
	t.Run("Frame round-trips through the reader", func(t *testing.T) {
		// Given: a server and a game to push
		server := &Server{}
		bufrw, _ := newTestReadWriter()

		game := &entity.Game{ID: "123", Status: entity.StatusOngoing, Turn: entity.PlayerX}

		// When: sending a game update and reading the frame back
		require.NoError(t, server.sendMessage(bufrw, actionGameUpdate, Payload{Game: game}))

		raw, err := server.readRequest(bufrw)
		require.NoError(t, err)

		// Then: the decoded message carries the action and the game state
		var msg Message
		require.NoError(t, json.Unmarshal(raw, &msg))
		assert.Equal(t, actionGameUpdate, msg.Action)

		var payload Payload
		require.NoError(t, json.Unmarshal(msg.Payload, &payload))
		require.NotNil(t, payload.Game)
		assert.Equal(t, "123", payload.Game.ID)
		assert.Equal(t, entity.StatusOngoing, payload.Game.Status)
	})

	t.Run("Payloads over 125 bytes use the extended length", func(t *testing.T) {
		// Given: an error message long enough to need a 16-bit length
		server := &Server{}
		bufrw, buf := newTestReadWriter()

		longError := strings.Repeat("x", 300)

		// When: sending it
		require.NoError(t, server.sendErrorResponse(bufrw, actionGameTurn, longError))

		// Then: the header advertises the extended length
		written := buf.Bytes()
		require.GreaterOrEqual(t, len(written), 4)
		assert.Equal(t, byte(126), written[1]&0x7f)

		advertised := binary.BigEndian.Uint16(written[2:4])
		assert.Equal(t, len(written)-4, int(advertised))

		// And: it still round-trips
		raw, err := server.readRequest(bufrw)
		require.NoError(t, err)

		var msg Message
		require.NoError(t, json.Unmarshal(raw, &msg))

		var payload Payload
		require.NoError(t, json.Unmarshal(msg.Payload, &payload))
		assert.Equal(t, longError, payload.Error)
	})
}

func TestReadRequest(t *testing.T) {
	t.Run("Unmasks a client frame", func(t *testing.T) {
		// Given: a masked frame carrying a turn request
		server := &Server{}
		bufrw, buf := newTestReadWriter()

		cell := 4
		payloadBytes, err := json.Marshal(Payload{Cell: &cell})
		require.NoError(t, err)

		messageBytes, err := json.Marshal(Message{Action: actionGameTurn, Payload: payloadBytes})
		require.NoError(t, err)

		buf.Write(maskedClientFrame(messageBytes))

		// When: reading the request
		raw, err := server.readRequest(bufrw)
		require.NoError(t, err)

		// Then: the payload is unmasked back to the original JSON
		var msg Message
		require.NoError(t, json.Unmarshal(raw, &msg))
		assert.Equal(t, actionGameTurn, msg.Action)

		var payload Payload
		require.NoError(t, json.Unmarshal(msg.Payload, &payload))
		require.NotNil(t, payload.Cell)
		assert.Equal(t, 4, *payload.Cell)
	})
}
