package service

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mpbot-backend/internal/model"
	"mpbot-backend/internal/store"
)

func newLicenseService(t *testing.T) *LicenseService {
	st, err := store.NewMemory()
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return NewLicenseService(st)
}

func strPtr(s string) *string { return &s }

func TestUpsertCreateDefaults(t *testing.T) {
	svc := newLicenseService(t)

	lic, err := svc.Upsert(model.LicenseUpsert{Key: "ABCD"})
	require.NoError(t, err)
	assert.Equal(t, "pro", lic.Plan)
	assert.Equal(t, 1, lic.MaxDevices)
	assert.True(t, lic.Active)
	assert.Nil(t, lic.ExpiresAt)
	assert.Equal(t, "", lic.Bound())

	hs, err := svc.History("ABCD", 0)
	require.NoError(t, err)
	require.Len(t, hs, 1)
	assert.Equal(t, model.ActionCreate, hs[0].Action)
}

func TestUpsertUpdatesMutableFields(t *testing.T) {
	svc := newLicenseService(t)

	created, err := svc.Upsert(model.LicenseUpsert{Key: "ABCD"})
	require.NoError(t, err)

	active := false
	exp := time.Now().UTC().Add(24 * time.Hour)
	updated, err := svc.Upsert(model.LicenseUpsert{
		Key:       "ABCD",
		Plan:      strPtr("basic"),
		Active:    &active,
		ExpiresAt: &exp,
	})
	require.NoError(t, err)
	assert.Equal(t, "basic", updated.Plan)
	assert.False(t, updated.Active)
	require.NotNil(t, updated.ExpiresAt)
	// key创建后不可变，创建时间不变
	assert.Equal(t, created.CreatedAt.Unix(), updated.CreatedAt.Unix())

	hs, err := svc.History("ABCD", 0)
	require.NoError(t, err)
	require.Len(t, hs, 2)
	assert.Equal(t, model.ActionUpsert, hs[0].Action)
}

func TestUpsertMissingKey(t *testing.T) {
	svc := newLicenseService(t)
	_, err := svc.Upsert(model.LicenseUpsert{})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestBindOnce(t *testing.T) {
	svc := newLicenseService(t)

	_, err := svc.Upsert(model.LicenseUpsert{Key: "L"})
	require.NoError(t, err)

	lic, err := svc.SetUID("L", "A")
	require.NoError(t, err)
	assert.Equal(t, "A", lic.Bound())

	// 同一uid重复绑定幂等
	lic, err = svc.SetUID("L", "A")
	require.NoError(t, err)
	assert.Equal(t, "A", lic.Bound())

	// 其他uid绑定冲突且状态不变
	lic, err = svc.SetUID("L", "B")
	assert.ErrorIs(t, err, ErrBoundToOther)
	assert.Equal(t, "A", lic.Bound())
}

func TestSetUIDNotFound(t *testing.T) {
	svc := newLicenseService(t)
	_, err := svc.SetUID("NOPE", "A")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTransferRequiresMatch(t *testing.T) {
	svc := newLicenseService(t)

	_, err := svc.Upsert(model.LicenseUpsert{Key: "L"})
	require.NoError(t, err)
	_, err = svc.SetUID("L", "A")
	require.NoError(t, err)

	// fromUid不匹配
	lic, err := svc.Transfer("L", strPtr("B"), "C")
	assert.ErrorIs(t, err, ErrBoundToOther)
	assert.Equal(t, "A", lic.Bound())

	// fromUid匹配
	lic, err = svc.Transfer("L", strPtr("A"), "B")
	require.NoError(t, err)
	assert.Equal(t, "B", lic.Bound())

	// 已绑定时自动绑定路径（fromUid为nil）一律冲突
	lic, err = svc.Transfer("L", nil, "C")
	assert.ErrorIs(t, err, ErrBoundToOther)
	assert.Equal(t, "B", lic.Bound())
}

func TestTransferValidation(t *testing.T) {
	svc := newLicenseService(t)

	_, err := svc.Transfer("L", nil, "")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.Transfer("NOPE", nil, "A")
	assert.ErrorIs(t, err, ErrNotFound)
}

// 完整流程：上报key→查无→首次使用自动绑定→有效→他人绑定冲突
func TestAutoBindScenario(t *testing.T) {
	svc := newLicenseService(t)

	_, err := svc.Upsert(model.LicenseUpsert{Key: "ABCD", Plan: strPtr("pro")})
	require.NoError(t, err)

	st, err := svc.Check("device1")
	require.NoError(t, err)
	assert.False(t, st.OK)
	assert.Equal(t, StatusNotFound, st.Status)

	lic, err := svc.Transfer("ABCD", nil, "device1")
	require.NoError(t, err)
	assert.Equal(t, "device1", lic.Bound())

	st, err = svc.Check("device1")
	require.NoError(t, err)
	assert.True(t, st.OK)
	assert.Equal(t, StatusValid, st.Status)
	assert.Equal(t, "pro", st.Plan)
	assert.Equal(t, "ABCD", st.Key)

	lic, err = svc.Transfer("ABCD", nil, "device2")
	assert.ErrorIs(t, err, ErrBoundToOther)
	assert.Equal(t, "device1", lic.Bound())
}

func TestCheckExpiryBoundary(t *testing.T) {
	svc := newLicenseService(t)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }

	tests := []struct {
		name       string
		expiresAt  time.Time
		wantOK     bool
		wantStatus string
	}{
		{"future", base.Add(time.Millisecond), true, StatusValid},
		{"exactly_now", base, true, StatusValid}, // 严格大于才算过期
		{"past", base.Add(-time.Millisecond), false, StatusExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := "K-" + tt.name
			uid := "dev-" + tt.name
			exp := tt.expiresAt
			_, err := svc.Upsert(model.LicenseUpsert{Key: key, ExpiresAt: &exp})
			require.NoError(t, err)
			_, err = svc.SetUID(key, uid)
			require.NoError(t, err)

			st, err := svc.Check(uid)
			require.NoError(t, err)
			assert.Equal(t, tt.wantOK, st.OK)
			assert.Equal(t, tt.wantStatus, st.Status)
		})
	}
}

func TestCheckInactiveResolvesNotFound(t *testing.T) {
	svc := newLicenseService(t)

	_, err := svc.Upsert(model.LicenseUpsert{Key: "L", UID: strPtr("dev")})
	require.NoError(t, err)
	_, err = svc.Deactivate("L")
	require.NoError(t, err)

	// 停用的许可证不参与uid解析，设备侧表现为not_found
	st, err := svc.Check("dev")
	require.NoError(t, err)
	assert.False(t, st.OK)
	assert.Equal(t, StatusNotFound, st.Status)

	_, err = svc.Activate("L")
	require.NoError(t, err)
	st, err = svc.Check("dev")
	require.NoError(t, err)
	assert.True(t, st.OK)
}

func TestRenewAndHistoryOrder(t *testing.T) {
	svc := newLicenseService(t)

	_, err := svc.Upsert(model.LicenseUpsert{Key: "L"})
	require.NoError(t, err)
	_, err = svc.SetUID("L", "A")
	require.NoError(t, err)
	_, err = svc.Transfer("L", strPtr("A"), "B")
	require.NoError(t, err)
	exp := time.Now().UTC().Add(30 * 24 * time.Hour)
	lic, err := svc.Renew("L", &exp)
	require.NoError(t, err)
	require.NotNil(t, lic.ExpiresAt)

	// 清除有效期
	lic, err = svc.Renew("L", nil)
	require.NoError(t, err)
	assert.Nil(t, lic.ExpiresAt)

	hs, err := svc.History("L", 0)
	require.NoError(t, err)
	require.Len(t, hs, 5)
	// 倒序：renew, renew, transfer, bind, create
	assert.Equal(t, model.ActionRenew, hs[0].Action)
	assert.Equal(t, model.ActionTransfer, hs[2].Action)
	assert.Equal(t, model.ActionBind, hs[3].Action)
	assert.Equal(t, model.ActionCreate, hs[4].Action)

	require.NotNil(t, hs[2].ToUID)
	assert.Equal(t, "B", *hs[2].ToUID)
}

func TestGenerateKeyFormat(t *testing.T) {
	svc := newLicenseService(t)

	lic, err := svc.Generate("", nil, 0)
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^[0-9A-F]{4}-[0-9A-F]{4}-[0-9A-F]{4}-[0-9A-F]{4}$`), lic.Key)
	assert.Equal(t, "pro", lic.Plan)

	other, err := svc.Generate("basic", nil, 3)
	require.NoError(t, err)
	assert.NotEqual(t, lic.Key, other.Key)
	assert.Equal(t, "basic", other.Plan)
	assert.Equal(t, 3, other.MaxDevices)
}

func TestStats(t *testing.T) {
	svc := newLicenseService(t)

	_, err := svc.Upsert(model.LicenseUpsert{Key: "A"})
	require.NoError(t, err)
	_, err = svc.Upsert(model.LicenseUpsert{Key: "B", Plan: strPtr("basic")})
	require.NoError(t, err)
	past := time.Now().UTC().Add(-time.Hour)
	_, err = svc.Upsert(model.LicenseUpsert{Key: "C", ExpiresAt: &past})
	require.NoError(t, err)
	_, err = svc.SetUID("A", "dev1")
	require.NoError(t, err)
	_, err = svc.Deactivate("B")
	require.NoError(t, err)

	st, err := svc.Stats()
	require.NoError(t, err)
	assert.Equal(t, int64(3), st.TotalLicenses)
	assert.Equal(t, int64(2), st.ActiveLicenses)
	assert.Equal(t, int64(1), st.ExpiredLicenses)
	assert.Equal(t, int64(1), st.BoundLicenses)
	assert.Equal(t, 2, st.CountByPlan("pro"))
	assert.Equal(t, 1, st.CountByPlan("basic"))
	assert.InDelta(t, 1.0/3.0, st.BoundRate(), 1e-9)
}
