package capture

import (
	"context"
	"errors"
	"runtime"
	"testing"

	psnet "github.com/shirou/gopsutil/v3/net"
	"github.com/stretchr/testify/assert"
)

func TestParseIPLink(t *testing.T) {
	output := []byte(`1: lo: <LOOPBACK,UP,LOWER_UP> mtu 65536 qdisc noqueue state UNKNOWN mode DEFAULT group default qlen 1000\    link/loopback 00:00:00:00:00:00 brd 00:00:00:00:00:00
2: wlan0: <BROADCAST,MULTICAST,UP,LOWER_UP> mtu 1500 qdisc noqueue state UP mode DORMANT group default qlen 1000\    link/ether 3c:22:fb:00:00:01 brd ff:ff:ff:ff:ff:ff
3: eth1: <BROADCAST,MULTICAST> mtu 1500 qdisc noop state DOWN mode DEFAULT group default qlen 1000
5: veth1@if4: <BROADCAST,MULTICAST,UP,LOWER_UP> mtu 1500 qdisc noqueue state UP
garbage line
`)
	assert.Equal(t, []string{"lo", "wlan0", "veth1"}, parseIPLink(output))
}

func TestParseIfconfig(t *testing.T) {
	output := []byte("lo0: flags=8049<UP,LOOPBACK,RUNNING,MULTICAST> mtu 16384\n" +
		"\tinet 127.0.0.1 netmask 0xff000000\n" +
		"gif0: flags=8010<POINTOPOINT,MULTICAST> mtu 1280\n" +
		"en0: flags=8863<UP,BROADCAST,SMART,RUNNING,SIMPLEX,MULTICAST> mtu 1500\n" +
		"\tether 3c:22:fb:00:00:01\n")
	assert.Equal(t, []string{"lo0", "en0"}, parseIfconfig(output))
}

func TestParseNetsh(t *testing.T) {
	output := []byte("\r\n" +
		"Admin State    State          Type             Interface Name\r\n" +
		"-------------------------------------------------------------------------\r\n" +
		"Enabled        Connected      Dedicated        Wi-Fi\r\n" +
		"Disabled       Disconnected   Dedicated        Ethernet 2\r\n" +
		"Enabled        Disconnected   Dedicated        Local Area Connection\r\n")
	assert.Equal(t, []string{"Wi-Fi", "Local Area Connection"}, parseNetsh(output))
}

func TestHasFlag(t *testing.T) {
	assert.True(t, hasFlag("BROADCAST,up,LOWER_UP", "UP"))
	assert.False(t, hasFlag("BROADCAST,LOWER_UP", "UP"))
	assert.False(t, hasFlag("", "UP"))
}

func stubNative(t *testing.T, output []byte, cmdErr error, table []psnet.InterfaceStat, tableErr error) {
	savedRun, savedTable := runCommand, systemInterfaces
	t.Cleanup(func() {
		runCommand, systemInterfaces = savedRun, savedTable
	})
	runCommand = func(context.Context, string, ...string) ([]byte, error) {
		return output, cmdErr
	}
	systemInterfaces = func(context.Context) ([]psnet.InterfaceStat, error) {
		return table, tableErr
	}
}

func TestListNativeInterfacesSystemTable(t *testing.T) {
	table := []psnet.InterfaceStat{
		{Name: "lo", Flags: []string{"up", "loopback"}},
		{Name: "eth0", Flags: []string{"broadcast", "multicast"}},
		{Name: "wlan0", Flags: []string{"up", "broadcast"}},
	}
	stubNative(t, nil, errors.New("executable file not found"), table, nil)

	names, err := ListNativeInterfaces(context.Background())
	assert.Nil(t, err)
	assert.Equal(t, []string{"lo", "wlan0"}, names)
}

func TestListNativeInterfacesTableError(t *testing.T) {
	stubNative(t, nil, errors.New("executable file not found"), nil, errors.New("no table"))

	_, err := ListNativeInterfaces(context.Background())
	assert.NotNil(t, err)
}

func TestListNativeInterfacesCommand(t *testing.T) {
	q, ok := nativeQueries[runtime.GOOS]
	if !ok {
		t.Skipf("no native query on %s", runtime.GOOS)
	}
	var output []byte
	switch q.name {
	case "ip":
		output = []byte("2: eth0: <BROADCAST,MULTICAST,UP,LOWER_UP> mtu 1500\n")
	case "ifconfig":
		output = []byte("eth0: flags=8863<UP,BROADCAST,RUNNING> mtu 1500\n")
	default:
		output = []byte("Enabled        Connected      Dedicated        eth0\r\n")
	}
	stubNative(t, output, nil, nil, errors.New("table must not be read"))

	names, err := ListNativeInterfaces(context.Background())
	assert.Nil(t, err)
	assert.Equal(t, []string{"eth0"}, names)
}
