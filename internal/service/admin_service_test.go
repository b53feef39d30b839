package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/qrcode_go_server/internal/model/dto"
	"github.com/qs3c/qrcode_go_server/internal/testutil"
)

func strPtr(s string) *string { return &s }

func TestAdminService_PromoteBootstrapAdmins(t *testing.T) {
	e := newTestEnv(t)
	alice := testutil.TestUser(t, e.db, testutil.WithUsername("alice"))
	bob := testutil.TestUser(t, e.db, testutil.WithUsername("bob"))

	n, err := e.admin.PromoteBootstrapAdmins([]string{" alice ", "", "nobody"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.True(t, e.reload(t, alice.ID).IsAdmin)
	assert.False(t, e.reload(t, bob.ID).IsAdmin)

	n, err = e.admin.PromoteBootstrapAdmins(nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestAdminService_ListUsers(t *testing.T) {
	e := newTestEnv(t)
	a := testutil.TestUser(t, e.db)
	b := testutil.TestUser(t, e.db, testutil.WithPlan("pro", ptrTime(e.now.Add(day(3)))))
	e.seedCodes(t, b.ID, 3)

	resp, err := e.admin.ListUsers()
	require.NoError(t, err)
	require.Len(t, resp.Users, 2)
	assert.Equal(t, int64(3), resp.TotalQRCodes)

	counts := map[int64]int64{}
	for _, u := range resp.Users {
		counts[u.ID] = u.QRCodeCount
	}
	assert.Equal(t, int64(0), counts[a.ID])
	assert.Equal(t, int64(3), counts[b.ID])
}

func TestAdminService_UpdateUser_PlanDowngradeEnforcesQuota(t *testing.T) {
	e := newTestEnv(t)
	user := testutil.TestUser(t, e.db, testutil.WithPlan("pro", ptrTime(e.now.Add(day(3)))))
	codes := e.seedCodes(t, user.ID, 7)

	info, err := e.admin.UpdateUser(context.Background(), user.ID, &dto.AdminUpdateUserRequest{
		Plan: strPtr("starter"),
		Name: strPtr("  Renamed "),
	})
	require.NoError(t, err)
	assert.Equal(t, "starter", info.Plan)
	assert.Equal(t, "Renamed", info.Name)
	assert.Equal(t, int64(5), info.QRCodeCount)
	assert.Equal(t, ids(codes[2:]), e.remainingIDs(t, user.ID))
}

func TestAdminService_UpdateUser_Validation(t *testing.T) {
	e := newTestEnv(t)
	taken := testutil.TestUser(t, e.db, testutil.WithUsername("taken"), testutil.WithEmail("taken@example.com"))
	user := testutil.TestUser(t, e.db)
	ctx := context.Background()

	_, err := e.admin.UpdateUser(ctx, user.ID, &dto.AdminUpdateUserRequest{Username: strPtr(taken.Username)})
	assert.ErrorIs(t, err, ErrUsernameExists)

	_, err = e.admin.UpdateUser(ctx, user.ID, &dto.AdminUpdateUserRequest{Email: strPtr(taken.Email)})
	assert.ErrorIs(t, err, ErrEmailExists)

	_, err = e.admin.UpdateUser(ctx, user.ID, &dto.AdminUpdateUserRequest{Plan: strPtr("gold")})
	assert.ErrorIs(t, err, ErrUnknownPlan)

	_, err = e.admin.UpdateUser(ctx, 9999, &dto.AdminUpdateUserRequest{Name: strPtr("x")})
	assert.ErrorIs(t, err, ErrUserNotFound)

	// 保留自己的用户名不算冲突
	info, err := e.admin.UpdateUser(ctx, taken.ID, &dto.AdminUpdateUserRequest{Username: strPtr("taken")})
	require.NoError(t, err)
	assert.Equal(t, "taken", info.Username)
}

func TestAdminService_DeleteUser(t *testing.T) {
	e := newTestEnv(t)
	admin := testutil.TestUser(t, e.db, testutil.WithAdmin())
	user := testutil.TestUser(t, e.db, testutil.WithPlan("pro", ptrTime(e.now.Add(day(3)))))
	codes := e.seedCodes(t, user.ID, 2)
	testutil.TestPayment(t, e.db, user.ID, 199, "month", e.now.Add(-day(2)))

	require.NoError(t, e.admin.DeleteUser(context.Background(), admin.ID, user.ID))

	_, err := e.userRepo.GetByID(user.ID)
	assert.Error(t, err)
	for _, c := range codes {
		for _, p := range c.Paths() {
			assert.False(t, testutil.FileExists(p), p)
		}
	}
	assert.False(t, testutil.FileExists(e.store.UserDir(user.ID)))

	count, err := e.qrcodeRepo.CountByUser(user.ID)
	require.NoError(t, err)
	assert.Zero(t, count)

	payments, err := e.paymentRepo.ListByUser(user.ID)
	require.NoError(t, err)
	assert.Len(t, payments, 1)
}

func TestAdminService_DeleteUser_Guards(t *testing.T) {
	e := newTestEnv(t)
	admin := testutil.TestUser(t, e.db, testutil.WithAdmin())

	err := e.admin.DeleteUser(context.Background(), admin.ID, admin.ID)
	assert.ErrorIs(t, err, ErrDeleteSelf)

	err = e.admin.DeleteUser(context.Background(), admin.ID, 9999)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestAdminService_CodesBypassRetention(t *testing.T) {
	e := newTestEnv(t)
	user := testutil.TestUser(t, e.db, testutil.WithPlan("starter", ptrTime(e.now.Add(day(3)))))
	codes := e.seedCodes(t, user.ID, 2)

	items, err := e.admin.ListUserCodes(user.ID)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, codes[1].PublicIDValue(), items[0].PublicID)

	// 刚创建的二维码也可由管理员删除
	require.NoError(t, e.admin.DeleteCode(context.Background(), codes[1].PublicIDValue()))
	assert.Equal(t, []string{codes[0].PublicIDValue()}, e.remainingIDs(t, user.ID))
	assert.False(t, testutil.FileExists(codes[1].PNGPath))

	err = e.admin.DeleteCode(context.Background(), "missing1")
	assert.ErrorIs(t, err, ErrQRCodeNotFound)

	_, err = e.admin.ListUserCodes(9999)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestAdminService_Stats(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	u1 := testutil.TestUser(t, e.db,
		testutil.WithCreatedAt(e.now.Add(-30*time.Minute)),
		testutil.WithPlan("pro", ptrTime(e.now.Add(day(5)))),
	)
	testutil.TestUser(t, e.db,
		testutil.WithCreatedAt(e.now.Add(-day(3))),
		testutil.WithPlan("starter", ptrTime(e.now.Add(day(5)))),
		testutil.WithCancelled(),
	)
	testutil.TestQRCode(t, e.db, u1.ID, "", testutil.WithQRCodeCreatedAt(e.now))
	testutil.TestQRCode(t, e.db, u1.ID, "", testutil.WithQRCodeCreatedAt(e.now.Add(-25*time.Hour)))
	testutil.TestPayment(t, e.db, u1.ID, 199, "month", e.now.Add(-time.Hour))
	testutil.TestPayment(t, e.db, u1.ID, 832, "year", time.Date(2025, 2, 20, 0, 0, 0, 0, time.UTC))

	stats, err := e.admin.Stats(ctx)
	require.NoError(t, err)

	require.Len(t, stats.Hourly, 24)
	assert.Equal(t, "2025-02-28T13:00:00Z", stats.Hourly[0].Hour)
	assert.Equal(t, "2025-03-01T12:00:00Z", stats.Hourly[23].Hour)
	assert.Equal(t, int64(1), stats.Hourly[22].Users)
	assert.Equal(t, int64(1), stats.Hourly[23].QRCodes)

	var users, codes int64
	for _, b := range stats.Hourly {
		users += b.Users
		codes += b.QRCodes
	}
	assert.Equal(t, int64(1), users)
	assert.Equal(t, int64(1), codes)

	assert.Equal(t, int64(199), stats.RevenueThisMonth)
	assert.Equal(t, int64(1), stats.MonthlySubsThisMonth)
	assert.Zero(t, stats.YearlySubsThisMonth)
	assert.Equal(t, int64(1031), stats.TotalRevenue)
	assert.Equal(t, int64(2), stats.TotalUsers)
	assert.Equal(t, int64(2), stats.TotalQRCodes)
	assert.Equal(t, int64(1), stats.ActiveSubscriptions)
	assert.Equal(t, map[string]int64{"pro": 1, "starter": 1}, stats.PlanCounts)
}

func TestAdminService_StatsCache(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	user := testutil.TestUser(t, e.db)

	first, err := e.admin.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.TotalUsers)

	testutil.TestUser(t, e.db)
	cached, err := e.admin.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), cached.TotalUsers)

	_, err = e.admin.UpdateUser(ctx, user.ID, &dto.AdminUpdateUserRequest{Name: strPtr("changed")})
	require.NoError(t, err)

	fresh, err := e.admin.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), fresh.TotalUsers)
}

func TestAdminService_Permissions(t *testing.T) {
	e := newTestEnv(t)
	testutil.TestQRCode(t, e.db, 7, e.store.Root())

	dbFile := filepath.Join(t.TempDir(), "app.db")
	require.NoError(t, os.WriteFile(dbFile, []byte("x"), 0o600))
	e.admin.dbFile = dbFile

	report := e.admin.Permissions()
	require.Len(t, report, 3)
	assert.Equal(t, e.store.Root(), report[0].Path)
	assert.Equal(t, e.store.UserDir(7), report[1].Path)
	assert.Equal(t, dbFile, report[2].Path)
	for _, p := range report {
		assert.True(t, p.Exists, p.Path)
		assert.True(t, p.Readable, p.Path)
	}

	missing := CheckPath(filepath.Join(t.TempDir(), "nope"))
	assert.False(t, missing.Exists)
	assert.False(t, missing.Readable)
	assert.False(t, missing.Writable)
}
