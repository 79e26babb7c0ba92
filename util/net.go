package util

import (
	"net"
	"strings"
)

// Address families reported for graph nodes
const (
	FamilyIPv4  = "ipv4"
	FamilyIPv6  = "ipv6"
	FamilyOther = "other"
)

func IsIPv4(ipAddr string) bool {
	ip := net.ParseIP(ipAddr)
	return ip != nil && strings.Contains(ipAddr, ".") && !strings.Contains(ipAddr, ":")
}

func IsIPv6(ipAddr string) bool {
	ip := net.ParseIP(ipAddr)
	return ip != nil && strings.Contains(ipAddr, ":")
}

func AddressFamily(ipAddr string) string {
	switch {
	case IsIPv4(ipAddr):
		return FamilyIPv4
	case IsIPv6(ipAddr):
		return FamilyIPv6
	default:
		return FamilyOther
	}
}
