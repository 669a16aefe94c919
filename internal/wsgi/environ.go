package wsgi

import (
	"bytes"
	"strconv"
	"strings"

	"picoserve/internal/netif"
)

// RequestParseError marks a request that could not be turned into an
// environ. The server answers it with a 400 response.
type RequestParseError struct {
	Reason string
}

func (e *RequestParseError) Error() string {
	return "parsing request: " + e.Reason
}

// buildEnviron reads one HTTP request off the connection and converts
// it into the environ mapping handed to the application.
func (s *Server) buildEnviron(conn netif.Conn) (Environ, error) {
	line, err := conn.ReadLine()
	if err != nil {
		return nil, &RequestParseError{Reason: "reading request line: " + err.Error()}
	}
	parts := strings.SplitN(string(line), " ", 3)
	if len(parts) != 3 {
		return nil, &RequestParseError{Reason: "malformed request line"}
	}
	method, target, proto := parts[0], parts[1], parts[2]
	if method == "" || target == "" || !strings.HasPrefix(proto, "HTTP/") {
		return nil, &RequestParseError{Reason: "malformed request line"}
	}

	env := Environ{
		"wsgi.version":      [2]int{1, 0},
		"wsgi.url_scheme":   "http",
		"wsgi.multithread":  false,
		"wsgi.multiprocess": false,
		"wsgi.run_once":     false,

		"REQUEST_METHOD":  method,
		"SCRIPT_NAME":     "",
		"SERVER_NAME":     s.iface.Addr().String(),
		"SERVER_PORT":     strconv.Itoa(s.port),
		"SERVER_PROTOCOL": proto,
	}
	path, query, _ := strings.Cut(target, "?")
	env["PATH_INFO"] = path
	env["QUERY_STRING"] = query

	headers, err := readHeaders(conn)
	if err != nil {
		return nil, err
	}

	if ct, ok := headers["content-type"]; ok {
		env["CONTENT_TYPE"] = ct
	}
	var body []byte
	if cl, ok := headers["content-length"]; ok {
		env["CONTENT_LENGTH"] = cl
		n, err := strconv.Atoi(cl)
		if err != nil || n < 0 {
			return nil, &RequestParseError{Reason: "invalid Content-Length: " + cl}
		}
		if n > 0 {
			body, err = conn.Recv(n)
			if err != nil {
				return nil, &RequestParseError{Reason: "reading body: " + err.Error()}
			}
		}
	} else {
		// No declared length: take whatever already arrived.
		body, _ = conn.Recv(0)
	}
	env[InputKey] = bytes.NewReader(body)

	for name, value := range headers {
		env["HTTP_"+strings.ToUpper(strings.ReplaceAll(name, "-", "_"))] = value
	}
	return env, nil
}

// readHeaders consumes header lines until the blank line. Names are
// lower-cased; repeated headers are joined with a comma in arrival
// order.
func readHeaders(conn netif.Conn) (map[string]string, error) {
	headers := make(map[string]string)
	for {
		line, err := conn.ReadLine()
		if err != nil {
			return nil, &RequestParseError{Reason: "reading headers: " + err.Error()}
		}
		if len(line) == 0 {
			return headers, nil
		}
		name, value, ok := strings.Cut(string(line), ":")
		if !ok {
			return nil, &RequestParseError{Reason: "malformed header line"}
		}
		name = strings.ToLower(strings.TrimSpace(name))
		value = strings.TrimSpace(value)
		if name == "" {
			return nil, &RequestParseError{Reason: "empty header name"}
		}
		if prev, exists := headers[name]; exists {
			value = prev + "," + value
		}
		headers[name] = value
	}
}
