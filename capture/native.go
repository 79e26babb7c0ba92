package capture

import (
	"bufio"
	"bytes"
	"context"
	"os/exec"
	"regexp"
	"runtime"
	"strings"

	psnet "github.com/shirou/gopsutil/v3/net"
	slog "github.com/vearne/simplelog"
)

// nativeQuery is the interface listing command of one operating system and
// the parser of its output.
type nativeQuery struct {
	name  string
	args  []string
	parse func(output []byte) []string
}

var nativeQueries = map[string]nativeQuery{
	"linux":   {name: "ip", args: []string{"-o", "link", "show", "up"}, parse: parseIPLink},
	"darwin":  {name: "ifconfig", args: []string{"-a"}, parse: parseIfconfig},
	"freebsd": {name: "ifconfig", args: []string{"-a"}, parse: parseIfconfig},
	"windows": {name: "netsh", args: []string{"interface", "show", "interface"}, parse: parseNetsh},
}

var runCommand = func(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// systemInterfaces reads the OS interface table, a variable for tests.
var systemInterfaces = func(ctx context.Context) ([]psnet.InterfaceStat, error) {
	return psnet.InterfacesWithContext(ctx)
}

// ListNativeInterfaces lists enabled interfaces using the operating system's
// own tooling. When the command is missing or yields nothing it reads the OS
// interface table instead.
func ListNativeInterfaces(ctx context.Context) ([]string, error) {
	if q, ok := nativeQueries[runtime.GOOS]; ok {
		output, err := runCommand(ctx, q.name, q.args...)
		if err == nil {
			if names := q.parse(output); len(names) > 0 {
				return names, nil
			}
		} else {
			slog.Debug("[ENUMERATOR] %s error:%v", q.name, err)
		}
	}
	return listSystemTable(ctx)
}

func listSystemTable(ctx context.Context) ([]string, error) {
	stats, err := systemInterfaces(ctx)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, s := range stats {
		for _, f := range s.Flags {
			if f == "up" {
				names = append(names, s.Name)
				break
			}
		}
	}
	return names, nil
}

// 2: wlan0: <BROADCAST,MULTICAST,UP,LOWER_UP> mtu 1500 qdisc ...
// 5: veth1@if4: <BROADCAST,MULTICAST,UP,LOWER_UP> mtu 1500 ...
var ipLinkLine = regexp.MustCompile(`^\d+:\s+([^:\s@]+)(?:@[^:\s]+)?:\s+<([^>]*)>`)

// en0: flags=8863<UP,BROADCAST,SMART,RUNNING,SIMPLEX,MULTICAST> mtu 1500
var ifconfigLine = regexp.MustCompile(`^([A-Za-z0-9_.\-]+): flags=[0-9a-fA-F]+<([^>]*)>`)

// Enabled        Connected      Dedicated        Wi-Fi
var netshLine = regexp.MustCompile(`^\s*Enabled\s+\S+\s+\S+\s+(.+?)\s*$`)

func parseIPLink(output []byte) []string {
	return scanLines(output, func(line string) (string, bool) {
		m := ipLinkLine.FindStringSubmatch(line)
		if m == nil || !hasFlag(m[2], "UP") {
			return "", false
		}
		return m[1], true
	})
}

func parseIfconfig(output []byte) []string {
	return scanLines(output, func(line string) (string, bool) {
		m := ifconfigLine.FindStringSubmatch(line)
		if m == nil || !hasFlag(m[2], "UP") {
			return "", false
		}
		return m[1], true
	})
}

func parseNetsh(output []byte) []string {
	return scanLines(output, func(line string) (string, bool) {
		m := netshLine.FindStringSubmatch(line)
		if m == nil {
			return "", false
		}
		return m[1], true
	})
}

// scanLines applies match to every line; lines it rejects are skipped.
func scanLines(output []byte, match func(line string) (string, bool)) []string {
	var names []string
	scanner := bufio.NewScanner(bytes.NewReader(output))
	for scanner.Scan() {
		if name, ok := match(strings.TrimRight(scanner.Text(), "\r")); ok {
			names = append(names, name)
		}
	}
	return names
}

func hasFlag(flags string, flag string) bool {
	for _, f := range strings.Split(flags, ",") {
		if strings.EqualFold(strings.TrimSpace(f), flag) {
			return true
		}
	}
	return false
}
