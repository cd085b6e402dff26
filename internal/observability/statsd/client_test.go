package statsd

import (
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func listenUDP(t *testing.T) net.PacketConn {
	t.Helper()
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = pc.Close() })
	return pc
}

func readPacket(t *testing.T, pc net.PacketConn) string {
	t.Helper()
	buf := make([]byte, 65535)
	require.NoError(t, pc.SetReadDeadline(time.Now().Add(2*time.Second)))
	n, _, err := pc.ReadFrom(buf)
	require.NoError(t, err)
	return string(buf[:n])
}

func TestNormalizeMetricName(t *testing.T) {
	tests := map[string]string{
		" api/request ": "api_request",
		"foo..bar":      "foo.bar",
		"multi  space":  "multi__space",
		"bad:name|x":    "bad_name_x",
		".visitors.":    "visitors",
		"":              "",
	}
	for input, want := range tests {
		assert.Equal(t, want, normalizeMetricName(input), "normalizeMetricName(%q)", input)
	}
}

func TestFormatTags(t *testing.T) {
	got := formatTags(map[string]string{"route": " /patients ", "": "ignored", "status": "2xx"})
	assert.Equal(t, "|#route:/patients,status:2xx", got)
	assert.Empty(t, formatTags(nil))
	assert.Empty(t, formatTags(map[string]string{" ": "x"}))
}

func TestMergeTags(t *testing.T) {
	global := formatTags(map[string]string{"env": "prod"})
	assert.Equal(t, "|#env:prod,result:ok", mergeTags(global, map[string]string{"result": "ok"}))
	assert.Equal(t, "|#env:prod", mergeTags(global, nil))
	assert.Equal(t, "|#result:ok", mergeTags("", map[string]string{"result": "ok"}))
}

func TestClient_FlushWritesBufferedLines(t *testing.T) {
	pc := listenUDP(t)
	c, err := NewClient(Config{
		Address:       pc.LocalAddr().String(),
		Prefix:        " ward_console. ",
		GlobalTags:    map[string]string{"env": "test"},
		FlushInterval: time.Hour,
	})
	require.NoError(t, err)
	defer c.Close()

	c.Count("forced_logout", 1, nil)
	c.Gauge("visitors.active", 3, nil)
	c.Timing("profile.fetch", 1500*time.Microsecond, map[string]string{"result": "ok"})
	c.Flush()

	lines := strings.Split(readPacket(t, pc), "\n")
	assert.Equal(t, []string{
		"ward_console.forced_logout:1|c|#env:test",
		"ward_console.visitors.active:3|g|#env:test",
		"ward_console.profile.fetch:1.5|ms|#env:test,result:ok",
	}, lines)
}

func TestClient_SplitsPackets(t *testing.T) {
	pc := listenUDP(t)
	c, err := NewClient(Config{Address: pc.LocalAddr().String(), MaxPacketSize: 32, FlushInterval: time.Hour})
	require.NoError(t, err)
	defer c.Close()

	c.Count("first_metric", 1, nil)  // 16 bytes
	c.Count("second_metric", 1, nil) // would exceed 32 with the first
	assert.Equal(t, "first_metric:1|c", readPacket(t, pc))

	c.Flush()
	assert.Equal(t, "second_metric:1|c", readPacket(t, pc))
}

func TestClient_FlushLoop(t *testing.T) {
	pc := listenUDP(t)
	c, err := NewClient(Config{Address: pc.LocalAddr().String(), FlushInterval: 10 * time.Millisecond})
	require.NoError(t, err)
	defer c.Close()

	c.Count("tick", 2, nil)
	assert.Equal(t, "tick:2|c", readPacket(t, pc))
}

func TestClient_CloseFlushesAndIsIdempotent(t *testing.T) {
	pc := listenUDP(t)
	c, err := NewClient(Config{Address: pc.LocalAddr().String(), FlushInterval: time.Hour})
	require.NoError(t, err)

	c.Gauge("last", 1, nil)
	require.NoError(t, c.Close())
	assert.Equal(t, "last:1|g", readPacket(t, pc))

	require.NoError(t, c.Close())
	c.Count("after_close", 1, nil) // dropped, must not panic
}

func TestNewClient_Errors(t *testing.T) {
	_, err := NewClient(Config{Address: "  "})
	require.Error(t, err)

	_, err = NewClient(Config{Address: "invalid::address"})
	require.Error(t, err)
}

func TestNilClientIsNoop(t *testing.T) {
	var c *Client
	c.Count("x", 1, nil)
	c.Flush()
	assert.NoError(t, c.Close())
}
