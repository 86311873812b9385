package serial_test

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/go-modem/cellular/serial"
)

func TestNewBadPort(t *testing.T) {
	_, err := serial.New("nosuchmodem", 115200)
	require.Error(t, err)
}

func TestNewReal(t *testing.T) {
	const port = "/dev/ttyUSB0"
	if _, err := os.Stat(port); os.IsNotExist(err) {
		t.Skip("no modem available")
	}
	p, err := serial.New(port, 115200, serial.WithReadTimeout(time.Second))
	require.NoError(t, err)
	require.NotNil(t, p)
	defer p.Close()
}
