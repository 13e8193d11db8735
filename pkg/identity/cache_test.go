package identity

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_AccountNamespaces(t *testing.T) {
	cache := NewCache()

	account := Account{
		Sid:     "S-1-5-21-1111111111-2222222222-3333333333-1103",
		Caption: `CONTOSO\jdoe`,
		Domain:  "CONTOSO",
		Name:    "jdoe",
	}

	sidKey := AccountKey("srv01", account.Sid)
	captionKey := AccountKey("srv01", account.Caption)

	_, found := cache.TryGetAccountBySid(sidKey)
	assert.False(t, found)
	_, found = cache.TryGetAccountByCaption(captionKey)
	assert.False(t, found)

	cache.SetAccountBySid(sidKey, account)
	cache.SetAccountByCaption(captionKey, account)

	got, found := cache.TryGetAccountBySid(sidKey)
	require.True(t, found)
	assert.Equal(t, account, got)

	got, found = cache.TryGetAccountByCaption(captionKey)
	require.True(t, found)
	assert.Equal(t, account, got)

	// The namespaces are independent: a SID key never answers a caption
	// lookup.
	_, found = cache.TryGetAccountByCaption(sidKey)
	assert.False(t, found)
}

func TestCache_ServerScoping(t *testing.T) {
	cache := NewCache()

	account := Account{Sid: "S-1-5-18", Caption: `NT AUTHORITY\SYSTEM`}
	cache.SetAccountBySid(AccountKey("srv01", account.Sid), account)

	_, found := cache.TryGetAccountBySid(AccountKey("srv02", account.Sid))
	assert.False(t, found)
}

func TestCache_SetDomainRegistersAllKeys(t *testing.T) {
	cache := NewCache()

	descriptor := DomainDescriptor{
		NetbiosName:       "CONTOSO",
		DnsName:           "contoso.example.com",
		SidPrefix:         "S-1-5-21-1111111111-2222222222-3333333333",
		DistinguishedName: "DC=contoso,DC=example,DC=com",
	}
	cache.SetDomain(descriptor)

	got, found := cache.TryGetDomainByNetbios("CONTOSO")
	require.True(t, found)
	assert.Equal(t, descriptor, got)

	got, found = cache.TryGetDomainByDns("contoso.example.com")
	require.True(t, found)
	assert.Equal(t, descriptor, got)

	got, found = cache.TryGetDomainByDns(descriptor.SidPrefix)
	require.True(t, found)
	assert.Equal(t, descriptor, got)
}

func TestCache_SetDomainSkipsEmptyKeys(t *testing.T) {
	cache := NewCache()

	cache.SetDomain(DomainDescriptor{NetbiosName: "WKSTN01"})

	_, found := cache.TryGetDomainByNetbios("WKSTN01")
	assert.True(t, found)
	_, found = cache.TryGetDomainByDns("")
	assert.False(t, found)
}

func TestCache_LastWriteWins(t *testing.T) {
	cache := NewCache()
	key := AccountKey("srv01", "S-1-5-18")

	cache.SetAccountBySid(key, Account{Name: "first"})
	cache.SetAccountBySid(key, Account{Name: "second"})

	got, found := cache.TryGetAccountBySid(key)
	require.True(t, found)
	assert.Equal(t, "second", got.Name)
}

func TestCache_Stats(t *testing.T) {
	cache := NewCache()
	key := AccountKey("srv01", "S-1-5-18")

	cache.TryGetAccountBySid(key)
	cache.SetAccountBySid(key, Account{Sid: "S-1-5-18"})
	cache.TryGetAccountBySid(key)
	cache.TryGetAccountBySid(key)

	stats := cache.Stats()
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
}

func TestCache_ConcurrentAccess(t *testing.T) {
	cache := NewCache()

	var wg sync.WaitGroup
	for worker := 0; worker < 8; worker++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				key := AccountKey("srv01", fmt.Sprintf("S-1-5-21-%d-%d", worker, i))
				cache.SetAccountBySid(key, Account{Sid: key})
				got, found := cache.TryGetAccountBySid(key)
				if !found || got.Sid != key {
					t.Errorf("lost write for %s", key)
					return
				}
			}
		}(worker)
	}
	wg.Wait()
}
