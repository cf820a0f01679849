// Copyright 2025 Arcade Team
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package model

import (
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
)

const (
	DefaultSMTPPort     = 587
	DefaultSMTPSecurity = "starttls"
)

var smtpSecurityModes = map[string]string{
	"none":     "none",
	"plain":    "none",
	"starttls": "starttls",
	"tls":      "tls",
	"ssl":      "tls",
}

type SMTPSettings struct {
	Enabled     bool   `json:"enabled"`
	Host        string `json:"host"`
	Port        int    `json:"port"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	FromAddress string `json:"fromAddress"`
	FromName    string `json:"fromName"`
	Security    string `json:"security"`
}

type GithubOAuthSettings struct {
	Enabled      bool   `json:"enabled"`
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
	CallbackURL  string `json:"callbackUrl"`
}

type OAuthSettings struct {
	Github GithubOAuthSettings `json:"github"`
}

// ServiceSettings is the global SMTP and OAuth configuration singleton.
type ServiceSettings struct {
	SMTP      SMTPSettings  `json:"smtp"`
	OAuth     OAuthSettings `json:"oauth"`
	UpdatedAt *time.Time    `json:"updatedAt,omitempty"`
}

// DefaultServiceSettings is what an empty store reads back as.
func DefaultServiceSettings() ServiceSettings {
	return ServiceSettings{SMTP: SMTPSettings{Port: DefaultSMTPPort, Security: DefaultSMTPSecurity}}
}

// Normalized repairs out-of-range values in place of rejecting them.
func (s ServiceSettings) Normalized() ServiceSettings {
	s.SMTP.Host = strings.TrimSpace(s.SMTP.Host)
	s.SMTP.Username = strings.TrimSpace(s.SMTP.Username)
	s.SMTP.FromAddress = strings.TrimSpace(s.SMTP.FromAddress)
	s.SMTP.FromName = strings.TrimSpace(s.SMTP.FromName)
	if s.SMTP.Port < 1 || s.SMTP.Port > 65535 {
		s.SMTP.Port = DefaultSMTPPort
	}
	if mode, ok := smtpSecurityModes[strings.ToLower(strings.TrimSpace(s.SMTP.Security))]; ok {
		s.SMTP.Security = mode
	} else {
		s.SMTP.Security = DefaultSMTPSecurity
	}
	s.OAuth.Github.ClientID = strings.TrimSpace(s.OAuth.Github.ClientID)
	s.OAuth.Github.CallbackURL = strings.TrimSpace(s.OAuth.Github.CallbackURL)
	return s
}

// NormalizeServiceSettings decodes any stored settings shape, including the
// legacy flat keys, into the nested form. Unparseable input yields defaults.
func NormalizeServiceSettings(raw []byte) ServiceSettings {
	var doc map[string]any
	if len(raw) == 0 || sonic.Unmarshal(raw, &doc) != nil || doc == nil {
		return DefaultServiceSettings()
	}

	smtp := asMap(doc["smtp"])
	github := asMap(asMap(doc["oauth"])["github"])

	s := ServiceSettings{
		SMTP: SMTPSettings{
			Enabled:     asBool(smtp["enabled"]),
			Host:        firstString(smtp["host"], doc["smtpHost"]),
			Port:        firstInt(smtp["port"], doc["smtpPort"]),
			Username:    firstString(smtp["username"], smtp["user"], doc["smtpUser"]),
			Password:    firstString(smtp["password"], doc["smtpPassword"]),
			FromAddress: firstString(smtp["fromAddress"], smtp["from"], doc["smtpFrom"]),
			FromName:    firstString(smtp["fromName"]),
			Security:    firstString(smtp["security"]),
		},
		OAuth: OAuthSettings{Github: GithubOAuthSettings{
			Enabled:      asBool(github["enabled"]),
			ClientID:     firstString(github["clientId"], doc["githubClientId"]),
			ClientSecret: firstString(github["clientSecret"], doc["githubClientSecret"]),
			CallbackURL:  firstString(github["callbackUrl"], doc["githubCallbackUrl"]),
		}},
	}
	// Legacy documents had no enabled flags; presence of a host or client id implied them.
	if _, ok := smtp["enabled"]; !ok && s.SMTP.Host != "" {
		s.SMTP.Enabled = true
	}
	if _, ok := github["enabled"]; !ok && s.OAuth.Github.ClientID != "" {
		s.OAuth.Github.Enabled = true
	}
	if ts, ok := doc["updatedAt"].(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			s.UpdatedAt = &t
		}
	}
	return s.Normalized()
}

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func asBool(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		ok, _ := strconv.ParseBool(strings.TrimSpace(b))
		return ok
	default:
		return false
	}
}

func firstString(vs ...any) string {
	for _, v := range vs {
		if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

func firstInt(vs ...any) int {
	for _, v := range vs {
		switch n := v.(type) {
		case float64:
			if n == float64(int(n)) {
				return int(n)
			}
		case int64:
			return int(n)
		case string:
			if i, err := strconv.Atoi(strings.TrimSpace(n)); err == nil {
				return i
			}
		}
	}
	return 0
}
