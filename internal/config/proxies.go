package config

import (
	"bufio"
	"fmt"
	"net/url"
	"os"
	"strings"
)

// passthrough in a proxy file stands for one unproxied egress path.
const passthrough = "passthrough"

// LoadProxies reads one proxy URL per line. Text after '#' is ignored, as are
// blank lines. An empty path yields a single unproxied entry ("").
func LoadProxies(path string) ([]string, error) {
	if path == "" {
		return []string{""}, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open proxy file: %w", err)
	}
	defer func() { _ = f.Close() }()

	var proxies []string
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line, _, _ := strings.Cut(scanner.Text(), "#")
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == passthrough {
			proxies = append(proxies, "")
			continue
		}
		u, err := url.Parse(line)
		if err != nil || u.Host == "" {
			return nil, fmt.Errorf("proxy file line %d: invalid proxy URL", lineNo)
		}
		proxies = append(proxies, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read proxy file: %w", err)
	}
	if len(proxies) == 0 {
		return nil, fmt.Errorf("proxy file %s lists no proxies", path)
	}
	return proxies, nil
}
