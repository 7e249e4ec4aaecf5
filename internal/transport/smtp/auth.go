package smtp

import (
	"errors"
	"fmt"
	netsmtp "net/smtp"
	"strings"
)

// loginAuth implements the LOGIN mechanism, which net/smtp does not provide.
// Like PLAIN it refuses to send credentials over an unencrypted connection
// to anything but localhost.
type loginAuth struct {
	username string
	password string
	host     string
}

// LoginAuth returns an Auth that answers the server's username and password
// prompts.
func LoginAuth(username, password, host string) netsmtp.Auth {
	return &loginAuth{username: username, password: password, host: host}
}

func (a *loginAuth) Start(server *netsmtp.ServerInfo) (string, []byte, error) {
	if !server.TLS && !isLocalhost(server.Name) {
		return "", nil, errors.New("unencrypted connection")
	}
	if server.Name != a.host {
		return "", nil, errors.New("wrong host name")
	}
	return "LOGIN", nil, nil
}

func (a *loginAuth) Next(fromServer []byte, more bool) ([]byte, error) {
	if !more {
		return nil, nil
	}
	switch prompt := strings.ToLower(strings.TrimSpace(string(fromServer))); prompt {
	case "username:", "user name", "username":
		return []byte(a.username), nil
	case "password:", "password":
		return []byte(a.password), nil
	default:
		return nil, fmt.Errorf("unexpected LOGIN challenge %q", prompt)
	}
}

func isLocalhost(name string) bool {
	return name == "localhost" || name == "127.0.0.1" || name == "::1"
}
