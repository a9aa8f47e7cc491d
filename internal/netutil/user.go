package netutil

import (
	"fmt"
	"os/user"
)

func lookupUser(username string) (uid, gid string, err error) {
	u, err := user.Lookup(username)
	if err != nil {
		return "", "", fmt.Errorf("netutil: lookup user %q: %w", username, err)
	}
	return u.Uid, u.Gid, nil
}
