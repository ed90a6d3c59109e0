package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mpbot-backend/internal/model"
)

// 两个后端跑同一套契约测试，保证可互换
func openStores(t *testing.T) map[string]Store {
	mem, err := NewMemory()
	require.NoError(t, err)
	fs, err := NewFile(filepath.Join(t.TempDir(), "mpbot.json"))
	require.NoError(t, err)
	t.Cleanup(func() {
		mem.Close()
		fs.Close()
	})
	return map[string]Store{"sqlite": mem, "file": fs}
}

func TestTargetRoundtrip(t *testing.T) {
	for name, st := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			got, err := st.GetTarget("missing")
			require.NoError(t, err)
			assert.Nil(t, got)

			base := time.Now().UTC().Truncate(time.Second)
			older := &model.Target{Key: "a", ThetaDeg: 10, PhiDeg: 90, Tolerance: 10, UpdatedAt: base}
			newer := &model.Target{Key: "b", ThetaDeg: 20, PhiDeg: 80, Tolerance: 5, UpdatedAt: base.Add(time.Minute)}
			require.NoError(t, st.PutTarget(older))
			require.NoError(t, st.PutTarget(newer))

			got, err = st.GetTarget("a")
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, 10.0, got.ThetaDeg)

			// upsert覆盖
			older.ThetaDeg = 15
			older.UpdatedAt = base.Add(2 * time.Minute)
			require.NoError(t, st.PutTarget(older))
			got, err = st.GetTarget("a")
			require.NoError(t, err)
			assert.Equal(t, 15.0, got.ThetaDeg)

			// 按更新时间倒序
			ts, err := st.ListTargets()
			require.NoError(t, err)
			require.Len(t, ts, 2)
			assert.Equal(t, "a", ts[0].Key)
			assert.Equal(t, "b", ts[1].Key)

			deleted, err := st.DeleteTarget("a")
			require.NoError(t, err)
			assert.True(t, deleted)
			deleted, err = st.DeleteTarget("a")
			require.NoError(t, err)
			assert.False(t, deleted)
		})
	}
}

func TestObservationLog(t *testing.T) {
	for name, st := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			now := time.Now().UTC()
			for i := 0; i < 5; i++ {
				o := &model.Observation{
					Key:       "k",
					ThetaDeg:  float64(i * 10),
					PhiDeg:    90,
					CreatedAt: now.Add(time.Duration(i) * time.Second),
				}
				require.NoError(t, st.AppendObservation(o))
			}

			n, err := st.CountObservations("k")
			require.NoError(t, err)
			assert.Equal(t, int64(5), n)

			// 倒序且受limit限制
			obs, err := st.ListObservations("k", 3)
			require.NoError(t, err)
			require.Len(t, obs, 3)
			assert.Equal(t, 40.0, obs[0].ThetaDeg)
			assert.Equal(t, 30.0, obs[1].ThetaDeg)
			assert.Equal(t, 20.0, obs[2].ThetaDeg)

			// 裁剪保留最新
			deleted, err := st.PruneObservations("k", 2)
			require.NoError(t, err)
			assert.Equal(t, int64(3), deleted)
			obs, err = st.ListObservations("k", 10)
			require.NoError(t, err)
			require.Len(t, obs, 2)
			assert.Equal(t, 40.0, obs[0].ThetaDeg)
			assert.Equal(t, 30.0, obs[1].ThetaDeg)

			// keep大于现有条数时不动
			deleted, err = st.PruneObservations("k", 10)
			require.NoError(t, err)
			assert.Equal(t, int64(0), deleted)

			n2, err := st.DeleteObservations("k")
			require.NoError(t, err)
			assert.Equal(t, int64(2), n2)
		})
	}
}

func TestLicenseBindCAS(t *testing.T) {
	for name, st := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			now := time.Now().UTC()
			lic := &model.License{
				Key: "ABCD", Plan: "pro", MaxDevices: 1, Active: true,
				CreatedAt: now, UpdatedAt: now,
			}
			require.NoError(t, st.PutLicense(lic))

			// 未绑定状态的CAS成功
			ok, err := st.BindLicenseUID("ABCD", nil, "device1")
			require.NoError(t, err)
			assert.True(t, ok)

			// 已绑定后以未绑定为前提的CAS必须失败
			ok, err = st.BindLicenseUID("ABCD", nil, "device2")
			require.NoError(t, err)
			assert.False(t, ok)

			got, err := st.GetLicense("ABCD")
			require.NoError(t, err)
			assert.Equal(t, "device1", got.Bound())

			// 前提匹配时换绑成功
			from := "device1"
			ok, err = st.BindLicenseUID("ABCD", &from, "device2")
			require.NoError(t, err)
			assert.True(t, ok)

			got, err = st.GetLicenseByUID("device2")
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, "ABCD", got.Key)

			// 不存在的key
			ok, err = st.BindLicenseUID("NOPE", nil, "x")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestGetLicenseByUIDSkipsInactive(t *testing.T) {
	for name, st := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			uid := "dev"
			now := time.Now().UTC()
			lic := &model.License{
				Key: "K1", Plan: "pro", UID: &uid, MaxDevices: 1, Active: false,
				CreatedAt: now, UpdatedAt: now,
			}
			require.NoError(t, st.PutLicense(lic))

			got, err := st.GetLicenseByUID(uid)
			require.NoError(t, err)
			assert.Nil(t, got)
		})
	}
}

func TestHistoryAndStats(t *testing.T) {
	for name, st := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			now := time.Now().UTC()
			for _, action := range []string{model.ActionCreate, model.ActionBind, model.ActionTransfer} {
				h := &model.LicenseHistory{Key: "K", Action: action, CreatedAt: now}
				require.NoError(t, st.AppendHistory(h))
			}
			hs, err := st.ListHistory("K", 2)
			require.NoError(t, err)
			require.Len(t, hs, 2)
			assert.Equal(t, model.ActionTransfer, hs[0].Action)
			assert.Equal(t, model.ActionBind, hs[1].Action)

			for i := 0; i < 3; i++ {
				require.NoError(t, st.AppendStat(&model.StatEvent{UID: "u", Event: "e", CreatedAt: now}))
			}
			events, total, err := st.ListStats(1, 2)
			require.NoError(t, err)
			assert.Equal(t, int64(3), total)
			assert.Len(t, events, 2)
			events, _, err = st.ListStats(2, 2)
			require.NoError(t, err)
			assert.Len(t, events, 1)
		})
	}
}

// 文件后端重启后数据仍在
func TestFileStorePersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mpbot.json")
	st, err := NewFile(path)
	require.NoError(t, err)

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, st.PutTarget(&model.Target{Key: "k", ThetaDeg: 45, PhiDeg: 90, Tolerance: 10, UpdatedAt: now}))
	require.NoError(t, st.PutLicense(&model.License{Key: "L", Plan: "pro", MaxDevices: 1, Active: true, CreatedAt: now, UpdatedAt: now}))
	require.NoError(t, st.Close())

	st2, err := NewFile(path)
	require.NoError(t, err)
	tgt, err := st2.GetTarget("k")
	require.NoError(t, err)
	require.NotNil(t, tgt)
	assert.Equal(t, 45.0, tgt.ThetaDeg)
	lic, err := st2.GetLicense("L")
	require.NoError(t, err)
	require.NotNil(t, lic)
	assert.Equal(t, "pro", lic.Plan)
}
