package config

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
)

var defaultPorts = map[string]int{
	"postgres": 5432,
	"mysql":    3306,
	"mssql":    1433,
}

// DSN returns the connection string for the configured backend. An explicit
// dsn setting wins over the individual connection fields.
func (t Target) DSN() (string, error) {
	if t.RawDSN != "" {
		return t.RawDSN, nil
	}
	kind := t.StorageKind()
	switch kind {
	case "postgres":
		u := t.url("postgres")
		if t.Database != "" {
			u.Path = "/" + t.Database
		}
		return u.String(), nil
	case "mssql":
		u := t.url("sqlserver")
		q := u.Query()
		if t.Database != "" {
			q.Set("database", t.Database)
		}
		u.RawQuery = q.Encode()
		return u.String(), nil
	case "mysql":
		c := mysql.NewConfig()
		c.User = t.User
		c.Passwd = t.Password
		c.Net = "tcp"
		c.Addr = t.hostPort(kind)
		c.DBName = t.Database
		if len(t.URLQuery) > 0 {
			c.Params = make(map[string]string, len(t.URLQuery))
			for k, v := range t.URLQuery {
				c.Params[k] = v
			}
		}
		return c.FormatDSN(), nil
	case "sqlite":
		if t.Database == "" {
			return "", fmt.Errorf("config: sqlite needs database (the file path)")
		}
		if len(t.URLQuery) == 0 {
			return t.Database, nil
		}
		return "file:" + t.Database + "?" + t.query().Encode(), nil
	default:
		return "", fmt.Errorf("config: unsupported dialect %q", t.Dialect)
	}
}

func (t Target) url(scheme string) *url.URL {
	u := &url.URL{Scheme: scheme, Host: t.hostPort(t.StorageKind())}
	switch {
	case t.User != "" && t.Password != "":
		u.User = url.UserPassword(t.User, t.Password)
	case t.User != "":
		u.User = url.User(t.User)
	}
	u.RawQuery = t.query().Encode()
	return u
}

func (t Target) hostPort(kind string) string {
	host := t.Host
	if host == "" {
		host = "localhost"
	}
	port := t.Port
	if port == 0 {
		port = defaultPorts[kind]
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}

func (t Target) query() url.Values {
	q := url.Values{}
	for k, v := range t.URLQuery {
		q.Set(k, v)
	}
	return q
}

// Redact masks the password in a connection string so it can be logged.
// Strings it cannot parse are returned as a fixed placeholder unless they
// look like a plain file path.
func Redact(dsn string) string {
	if strings.Contains(dsn, "://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return "<unparseable dsn>"
		}
		return u.Redacted()
	}
	if strings.Contains(dsn, "@") {
		c, err := mysql.ParseDSN(dsn)
		if err != nil {
			return "<unparseable dsn>"
		}
		if c.Passwd != "" {
			c.Passwd = "xxxxx"
		}
		return c.FormatDSN()
	}
	return dsn
}
