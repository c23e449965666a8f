// Package conn provides the PostgreSQL connection used by the trade journal.
package conn

import (
	"fmt"
	"net/url"
	"strconv"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const (
	defaultHost    = "localhost"
	defaultPort    = 5432
	defaultSSLMode = "disable"
)

// Option defines connection options for PostgreSQL. ConnString, when set,
// overrides every other field.
type Option struct {
	Host           string
	Port           int
	User           string
	Password       string
	Database       string
	SSLMode        string
	AppName        string
	ConnectTimeout time.Duration
	Params         map[string]string
	ConnString     string
	Config         *gorm.Config
}

// Client wraps a PostgreSQL connection pool.
type Client struct {
	opt Option
	db  *gorm.DB
}

// New opens a PostgreSQL connection pool and verifies it with a ping, so a
// bad DSN fails at startup instead of on the first write.
func New(option Option) (*Client, error) {
	connString, err := option.dsn()
	if err != nil {
		return nil, err
	}

	config := option.Config
	if config == nil {
		config = &gorm.Config{}
	}

	db, err := gorm.Open(postgres.Open(connString), config)
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	return &Client{opt: option, db: db}, nil
}

// DB returns the underlying gorm.DB instance.
func (c *Client) DB() *gorm.DB {
	if c == nil {
		return nil
	}
	return c.db
}

// Close closes the underlying connection pool.
func (c *Client) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (opt Option) dsn() (string, error) {
	if opt.ConnString != "" {
		return opt.mergeConnString()
	}

	host := opt.Host
	if host == "" {
		host = defaultHost
	}

	port := opt.Port
	if port == 0 {
		port = defaultPort
	}

	sslMode := opt.SSLMode
	if sslMode == "" {
		sslMode = defaultSSLMode
	}

	u := &url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", host, port),
	}

	if opt.User != "" {
		if opt.Password != "" {
			u.User = url.UserPassword(opt.User, opt.Password)
		} else {
			u.User = url.User(opt.User)
		}
	}

	if opt.Database != "" {
		u.Path = "/" + opt.Database
	}

	query := url.Values{}
	query.Set("sslmode", sslMode)
	if opt.AppName != "" {
		query.Set("application_name", opt.AppName)
	}
	if opt.ConnectTimeout > 0 {
		seconds := int(opt.ConnectTimeout / time.Second)
		if seconds < 1 {
			seconds = 1
		}
		query.Set("connect_timeout", strconv.Itoa(seconds))
	}
	for key, value := range opt.Params {
		if key == "" {
			continue
		}
		query.Set(key, value)
	}

	u.RawQuery = query.Encode()

	return u.String(), nil
}

// mergeConnString layers AppName and ConnectTimeout onto a caller-provided
// DSN without overriding parameters it already carries.
func (opt Option) mergeConnString() (string, error) {
	u, err := url.Parse(opt.ConnString)
	if err != nil {
		return "", fmt.Errorf("parse conn string: %w", err)
	}

	query := u.Query()
	if opt.AppName != "" && query.Get("application_name") == "" {
		query.Set("application_name", opt.AppName)
	}
	if opt.ConnectTimeout > 0 && query.Get("connect_timeout") == "" {
		seconds := int(opt.ConnectTimeout / time.Second)
		if seconds < 1 {
			seconds = 1
		}
		query.Set("connect_timeout", strconv.Itoa(seconds))
	}
	u.RawQuery = query.Encode()

	return u.String(), nil
}
