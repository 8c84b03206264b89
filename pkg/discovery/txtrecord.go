package discovery

import (
	"fmt"
	"sort"
	"strings"
)

// TXTRecordMap is a map of TXT record key-value pairs.
type TXTRecordMap map[string]string

// EncodeRelayTXT creates the TXT records for a relay.
func EncodeRelayTXT(info *RelayInfo) TXTRecordMap {
	txt := TXTRecordMap{
		TXTKeyFormat:  info.Format,
		TXTKeyVersion: info.Version,
	}
	if info.WebSocketPath != "" {
		txt[TXTKeyWebSocket] = info.WebSocketPath
	}
	return txt
}

// DecodeRelayTXT parses relay TXT records. format is required.
func DecodeRelayTXT(txt TXTRecordMap) (*RelayInfo, error) {
	format, ok := txt[TXTKeyFormat]
	if !ok || format == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingRequired, TXTKeyFormat)
	}
	return &RelayInfo{
		Format:        format,
		Version:       txt[TXTKeyVersion],
		WebSocketPath: txt[TXTKeyWebSocket],
	}, nil
}

// TXTRecordsToStrings converts a TXTRecordMap to sorted "key=value" strings.
func TXTRecordsToStrings(txt TXTRecordMap) []string {
	result := make([]string, 0, len(txt))
	for k, v := range txt {
		result = append(result, k+"="+v)
	}
	sort.Strings(result)
	return result
}

// StringsToTXTRecords parses "key=value" strings into a TXTRecordMap.
func StringsToTXTRecords(strs []string) TXTRecordMap {
	txt := make(TXTRecordMap)
	for _, s := range strs {
		k, v, _ := strings.Cut(s, "=")
		if k != "" {
			txt[k] = v
		}
	}
	return txt
}

// ValidateInstanceName checks if an instance name is valid for mDNS.
func ValidateInstanceName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInstanceNameTooLong)
	}
	if len(name) > MaxInstanceNameLen {
		return ErrInstanceNameTooLong
	}
	return nil
}
