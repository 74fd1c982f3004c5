// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 EduSphere Contributors

//go:build integration

package portal_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/edusphere/portal/internal/authstate"
	"github.com/edusphere/portal/internal/guard"
	"github.com/edusphere/portal/internal/identity"
	"github.com/edusphere/portal/internal/portal/portaltest"
)

var _ = Describe("Signing in", func() {
	var (
		env *testEnv
		ctx context.Context
	)

	BeforeEach(func() {
		env = newTestEnv()
		ctx = context.Background()
		env.machine.Initialize(ctx)
	})

	Context("with invalid credentials", func() {
		It("settles unauthenticated with the server message", func() {
			err := env.machine.Login(ctx, "alice@school.test", "wrong", identity.RoleStudent)
			Expect(err).To(HaveOccurred())

			st := env.machine.State()
			Expect(st.Phase).To(Equal(authstate.PhaseUnauthenticated))
			Expect(st.LastError).NotTo(BeNil())
			Expect(st.LastError.Message).To(Equal(portaltest.InvalidCredentials))

			rec, err := env.store.Load()
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.Empty()).To(BeTrue())
		})
	})

	Context("with valid credentials", func() {
		BeforeEach(func() {
			Expect(env.machine.Login(ctx, "alice@school.test", "s3cret", identity.RoleStudent)).To(Succeed())
		})

		It("persists the session across a restart", func() {
			env.restart()
			st := env.machine.Initialize(ctx)

			Expect(st.Authenticated()).To(BeTrue())
			Expect(st.Identity.Base().Email).To(Equal("alice@school.test"))
			Expect(env.svc.Calls("/check-auth")).To(Equal(2))
		})

		It("redirects a student away from faculty pages", func() {
			d := guard.Check(env.machine, "/dashboard/faculty", identity.RoleFaculty)
			Expect(d.Outcome).To(Equal(guard.Redirect))
			Expect(d.Location).To(Equal("/dashboard/student"))
		})

		It("allows the student dashboard", func() {
			roles, ok := guard.DefaultTable().Match("/dashboard/student/grades")
			Expect(ok).To(BeTrue())
			Expect(guard.Check(env.machine, "/dashboard/student/grades", roles...).Outcome).To(Equal(guard.Allow))
		})

		It("forgets the session on logout", func() {
			Expect(env.machine.Logout(ctx)).To(Succeed())

			Expect(env.machine.State().Phase).To(Equal(authstate.PhaseUnauthenticated))
			Expect(env.svc.ActiveSessions()).To(BeZero())
			Expect(env.storage.Path()).NotTo(BeAnExistingFile())
		})
	})
})

var _ = Describe("Session revalidation", func() {
	It("signs out when the portal becomes unreachable", func() {
		env := newTestEnv(authstate.WithRevalidateInterval(20 * time.Millisecond))
		ctx := context.Background()
		env.machine.Initialize(ctx)
		Expect(env.machine.Login(ctx, "alice@school.test", "s3cret", identity.RoleStudent)).To(Succeed())

		events, unsubscribe := env.machine.Subscribe()
		DeferCleanup(unsubscribe)

		env.svc.SetPartitioned(true)

		Eventually(events).WithTimeout(5 * time.Second).Should(Receive(
			HaveField("Type", authstate.EventNetworkError)))
		Expect(env.machine.State().Phase).To(Equal(authstate.PhaseUnauthenticated))

		rec, err := env.store.Load()
		Expect(err).NotTo(HaveOccurred())
		Expect(rec.Empty()).To(BeTrue())

		d := guard.Check(env.machine, "/dashboard/student")
		Expect(d.Outcome).To(Equal(guard.Redirect))
		Expect(d.Location).To(Equal("/login?next=%2Fdashboard%2Fstudent"))
	})

	It("discards a check that resolves after logout", func() {
		env := newTestEnv()
		ctx := context.Background()
		env.machine.Initialize(ctx)
		Expect(env.machine.Login(ctx, "alice@school.test", "s3cret", identity.RoleStudent)).To(Succeed())

		entered := env.svc.HoldCheckAuth()
		result := make(chan authstate.State, 1)
		go func() {
			defer GinkgoRecover()
			result <- env.machine.CheckAuth(ctx)
		}()
		Eventually(entered).Should(Receive())

		Expect(env.machine.Logout(ctx)).To(Succeed())
		env.svc.ReleaseCheckAuth()

		var st authstate.State
		Eventually(result).Should(Receive(&st))
		Expect(st.Phase).To(Equal(authstate.PhaseUnauthenticated))
		Expect(env.machine.State().Identity).To(BeNil())

		rec, err := env.store.Load()
		Expect(err).NotTo(HaveOccurred())
		Expect(rec.Empty()).To(BeTrue())
	})
})

var _ = Describe("Guard middleware", func() {
	var (
		env    *testEnv
		server *httptest.Server
		client *http.Client
	)

	BeforeEach(func() {
		env = newTestEnv()
		page := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("dashboard"))
		})
		server = httptest.NewServer(guard.Middleware(env.machine, nil)(page))
		DeferCleanup(server.Close)
		client = &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}}
	})

	It("asks the browser to wait until the first check settles", func() {
		resp, err := client.Get(server.URL + "/dashboard/student")
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()

		Expect(resp.StatusCode).To(Equal(http.StatusServiceUnavailable))
		Expect(resp.Header.Get("Retry-After")).To(Equal("1"))
	})

	It("sends anonymous visitors to the login page", func() {
		env.machine.Initialize(context.Background())

		resp, err := client.Get(server.URL + "/dashboard/student")
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()

		Expect(resp.StatusCode).To(Equal(http.StatusSeeOther))
		Expect(resp.Header.Get("Location")).To(Equal("/login?next=%2Fdashboard%2Fstudent"))
	})

	It("serves the page to a signed-in faculty member", func() {
		ctx := context.Background()
		env.machine.Initialize(ctx)
		Expect(env.machine.Login(ctx, "frank@school.test", "t3ach", identity.RoleFaculty)).To(Succeed())

		resp, err := client.Get(server.URL + "/dashboard/faculty")
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()

		Expect(resp.StatusCode).To(Equal(http.StatusOK))
	})

	It("passes unprotected paths through", func() {
		resp, err := client.Get(server.URL + "/about")
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()

		Expect(resp.StatusCode).To(Equal(http.StatusOK))
	})
})
