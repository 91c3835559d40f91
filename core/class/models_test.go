package class

import (
	"testing"
	"time"

	"github.com/volatiletech/null/v8"
)

func TestInviteStatus(t *testing.T) {
	now := time.Now().UTC()

	tests := []struct {
		name string
		inv  Invite
		want InviteStatus
	}{
		{
			name: "no limits",
			inv:  Invite{UseCount: 1000},
			want: InviteActive,
		},
		{
			name: "under use limit, future expiry",
			inv: Invite{
				ExpiresAt: null.TimeFrom(now.Add(time.Hour)),
				MaxUses:   null.IntFrom(5),
				UseCount:  4,
			},
			want: InviteActive,
		},
		{
			name: "use limit reached",
			inv: Invite{
				MaxUses:  null.IntFrom(5),
				UseCount: 5,
			},
			want: InviteExhausted,
		},
		{
			name: "expired with remaining uses",
			inv: Invite{
				ExpiresAt: null.TimeFrom(now.Add(-time.Minute)),
				MaxUses:   null.IntFrom(5),
				UseCount:  1,
			},
			want: InviteExpired,
		},
		{
			name: "expired and exhausted reads expired",
			inv: Invite{
				ExpiresAt: null.TimeFrom(now.Add(-time.Minute)),
				MaxUses:   null.IntFrom(1),
				UseCount:  1,
			},
			want: InviteExpired,
		},
		{
			name: "expiry boundary is exclusive",
			inv: Invite{
				ExpiresAt: null.TimeFrom(now),
			},
			want: InviteExpired,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.inv.Status(now); got != tt.want {
				t.Errorf("Status() = %v; want %v", got, tt.want)
			}
		})
	}
}

func TestNewInviteNormalization(t *testing.T) {
	now := time.Now().UTC()

	t.Run("zero ttl means no expiry", func(t *testing.T) {
		ni := NewInvite{ExpiresInMinutes: 0, MaxUses: 3}
		if exp := ni.expiresAt(now); exp.Valid {
			t.Errorf("expiresAt() = %v; want null", exp)
		}
	})
	t.Run("negative ttl means no expiry", func(t *testing.T) {
		ni := NewInvite{ExpiresInMinutes: -10}
		if exp := ni.expiresAt(now); exp.Valid {
			t.Errorf("expiresAt() = %v; want null", exp)
		}
	})
	t.Run("positive ttl sets expiry", func(t *testing.T) {
		ni := NewInvite{ExpiresInMinutes: 60}
		exp := ni.expiresAt(now)
		if !exp.Valid || !exp.Time.Equal(now.Add(time.Hour)) {
			t.Errorf("expiresAt() = %v; want %v", exp, now.Add(time.Hour))
		}
	})
	t.Run("zero max uses means unlimited", func(t *testing.T) {
		ni := NewInvite{MaxUses: 0}
		if mu := ni.maxUses(); mu.Valid {
			t.Errorf("maxUses() = %v; want null", mu)
		}
	})
	t.Run("positive max uses kept", func(t *testing.T) {
		ni := NewInvite{MaxUses: 5}
		mu := ni.maxUses()
		if !mu.Valid || mu.Int != 5 {
			t.Errorf("maxUses() = %v; want 5", mu)
		}
	})
}
