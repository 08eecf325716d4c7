package trendsource

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/gotd/td/crypto"
	"github.com/gotd/td/session"
	"github.com/gotd/td/tg"
)

// ErrUnknownSession возвращается, если файл сессии не похож ни на один известный формат.
var ErrUnknownSession = errors.New("unknown MTProto session format")

// PrepareSession приводит файл сессии к формату gotd. Сессии Telethon (строка,
// выгрузка таблицы sessions или JSON аккаунта) конвертируются на месте.
// Отсутствующий файл не ошибка: gotd создаст его после входа.
func PrepareSession(path string) (converted bool, err error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read session: %w", err)
	}
	data, converted, err := normalizeSession(raw)
	if err != nil || !converted {
		return false, err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return false, fmt.Errorf("write session: %w", err)
	}
	return true, nil
}

func normalizeSession(raw []byte) ([]byte, bool, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, false, fmt.Errorf("session is empty")
	}
	var native struct {
		Version int `json:"Version"`
	}
	if json.Unmarshal(raw, &native) == nil && native.Version != 0 {
		return raw, false, nil
	}
	for _, convert := range []func([]byte) ([]byte, error){fromAccountJSON, fromSessionRows, fromTelethonString} {
		if out, err := convert(raw); err == nil {
			return out, true, nil
		}
	}
	return nil, false, ErrUnknownSession
}

func fromAccountJSON(raw []byte) ([]byte, error) {
	var account struct {
		ExtraParams string `json:"extra_params"`
	}
	if err := json.Unmarshal(raw, &account); err != nil {
		return nil, err
	}
	if account.ExtraParams == "" {
		return nil, fmt.Errorf("no extra_params")
	}
	return fromTelethonString([]byte(account.ExtraParams))
}

func fromSessionRows(raw []byte) ([]byte, error) {
	var rows []struct {
		DCID          int    `json:"dc_id"`
		ServerAddress string `json:"server_address"`
		Port          int    `json:"port"`
		AuthKey       string `json:"auth_key"`
	}
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, err
	}
	for _, row := range rows {
		if row.AuthKey != "" && row.ServerAddress != "" && row.Port != 0 {
			return sessionFromKey(row.DCID, row.ServerAddress, row.Port, row.AuthKey)
		}
	}
	return nil, fmt.Errorf("no usable session rows")
}

func fromTelethonString(raw []byte) ([]byte, error) {
	value := strings.Trim(strings.TrimSpace(string(raw)), "\"'")
	if value == "" {
		return nil, fmt.Errorf("empty session string")
	}
	data, err := session.TelethonSession(value)
	if err != nil {
		return nil, err
	}
	if data.Config.ThisDC == 0 {
		data.Config.ThisDC = data.DC
	}
	if len(data.Config.DCOptions) == 0 {
		if host, portStr, err := net.SplitHostPort(data.Addr); err == nil {
			if port, err := strconv.Atoi(portStr); err == nil {
				data.Config.DCOptions = []tg.DCOption{{ID: data.DC, IPAddress: host, Port: port}}
			}
		}
	}
	return encodeSession(*data)
}

func sessionFromKey(dc int, host string, port int, keyHex string) ([]byte, error) {
	rawKey, err := hex.DecodeString(strings.Trim(strings.TrimSpace(keyHex), "'\""))
	if err != nil {
		return nil, fmt.Errorf("decode auth_key: %w", err)
	}
	var key crypto.Key
	if len(rawKey) != len(key) {
		return nil, fmt.Errorf("auth_key length %d", len(rawKey))
	}
	copy(key[:], rawKey)
	id := key.WithID().ID

	return encodeSession(session.Data{
		Config: session.Config{
			ThisDC:    dc,
			DCOptions: []tg.DCOption{{ID: dc, IPAddress: host, Port: port}},
		},
		DC:        dc,
		Addr:      net.JoinHostPort(host, strconv.Itoa(port)),
		AuthKey:   append([]byte(nil), key[:]...),
		AuthKeyID: append([]byte(nil), id[:]...),
	})
}

func encodeSession(data session.Data) ([]byte, error) {
	return json.Marshal(struct {
		Version int          `json:"Version"`
		Data    session.Data `json:"Data"`
	}{Version: 1, Data: data})
}
