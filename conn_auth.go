package rtspcore

import (
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	"strings"

	"github.com/avfoundry/rtspcore/pkg/base"
	"github.com/avfoundry/rtspcore/pkg/liberrors"
)

func md5Hex(in string) string {
	h := md5.Sum([]byte(in))
	return hex.EncodeToString(h[:])
}

// SetAuth configures the credentials attached to outgoing requests.
// Both user and pass must be set before the first authenticated request.
func (c *Conn) SetAuth(method AuthMethod, user string, pass string) error {
	if user == "" {
		return liberrors.ErrInvalidParameter{Name: "user", Value: user}
	}

	c.authMethod = method
	c.authUser = user
	c.authPass = pass
	c.authSet = true
	return nil
}

// SetAuthParam stores an authentication parameter such as realm or nonce.
// Parameters received in a WWW-Authenticate challenge are stored
// automatically; this allows presetting them when known in advance.
func (c *Conn) SetAuthParam(key string, value string) {
	c.authParams[strings.ToLower(key)] = value
}

// ClearAuthParams empties the authentication parameter bag.
func (c *Conn) ClearAuthParams() {
	c.authParams = make(map[string]string)
}

// authorizationHeader builds the Authorization header for a request with the
// given method and target. Digest needs realm and nonce from a previous
// challenge; when they are missing no header is produced and the request goes
// out unauthenticated.
func (c *Conn) authorizationHeader(method base.Method, u *base.URL) (base.HeaderValue, bool) {
	switch c.authMethod {
	case AuthBasic:
		response := base64.StdEncoding.EncodeToString([]byte(c.authUser + ":" + c.authPass))
		return base.HeaderValue{"Basic " + response}, true

	case AuthDigest:
		realm, okRealm := c.authParams["realm"]
		nonce, okNonce := c.authParams["nonce"]
		if !okRealm || !okNonce {
			return nil, false
		}

		ur := u.CloneWithoutCredentials().String()

		response := md5Hex(md5Hex(c.authUser+":"+realm+":"+c.authPass) + ":" +
			nonce + ":" + md5Hex(string(method)+":"+ur))

		return base.HeaderValue{"Digest " +
			"username=\"" + c.authUser + "\", " +
			"realm=\"" + realm + "\", " +
			"nonce=\"" + nonce + "\", " +
			"uri=\"" + ur + "\", " +
			"response=\"" + response + "\""}, true
	}

	return nil, false
}

// fillAuthParams parses WWW-Authenticate challenges and stores their
// parameters. Digest challenges take precedence over Basic ones.
func (c *Conn) fillAuthParams(v base.HeaderValue) {
	challenge := ""
	for _, vi := range v {
		if strings.HasPrefix(vi, "Digest ") {
			challenge = strings.TrimPrefix(vi, "Digest ")
			break
		}
		if strings.HasPrefix(vi, "Basic ") && challenge == "" {
			challenge = strings.TrimPrefix(vi, "Basic ")
		}
	}
	if challenge == "" {
		return
	}

	for _, kv := range splitChallenge(challenge) {
		i := strings.Index(kv, "=")
		if i < 0 {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(kv[:i]))
		val := strings.TrimSpace(kv[i+1:])
		val = strings.TrimPrefix(val, "\"")
		val = strings.TrimSuffix(val, "\"")
		c.authParams[key] = val
	}
}

// splitChallenge splits a challenge on commas, skipping commas inside quoted
// strings.
func splitChallenge(s string) []string {
	var out []string
	inQuotes := false
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"':
			inQuotes = !inQuotes
		case ',':
			if !inQuotes {
				out = append(out, s[start:i])
				start = i + 1
			}
		}
	}
	out = append(out, s[start:])
	return out
}
