package lookup_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/fleet-expense/internal/core/events"
	"github.com/frahmantamala/fleet-expense/internal/core/reference"
	"github.com/frahmantamala/fleet-expense/internal/driver"
	"github.com/frahmantamala/fleet-expense/internal/lookup"
	"github.com/frahmantamala/fleet-expense/internal/vehicle"
	"github.com/frahmantamala/fleet-expense/pkg/logger"
)

var _ = Describe("Lookup EventHandler", func() {
	var (
		ctx    context.Context
		getter *mockVehicleGetter
		lk     *lookup.VehicleLookup
		bus    *events.EventBus
		d      driver.Driver
	)

	BeforeEach(func() {
		ctx = context.Background()
		getter = &mockVehicleGetter{vehicles: map[string]vehicle.Vehicle{
			"v2": {ID: "v2", CurrentOdometer: 12000},
		}}
		lk = lookup.NewVehicleLookup(getter, logger.Discard())
		bus = events.NewEventBus(logger.Discard())
		lookup.NewEventHandler(lk, logger.Discard()).RegisterEventHandlers(bus)
		d = driver.Driver{ID: "d1", AssignedVehicleID: reference.ByID[vehicle.Vehicle]("v2")}
	})

	It("should refetch a vehicle after its odometer was recorded", func() {
		_, err := lk.AssignedVehicle(ctx, d)
		Expect(err).NotTo(HaveOccurred())

		getter.vehicles["v2"] = vehicle.Vehicle{ID: "v2", CurrentOdometer: 12500}
		Expect(bus.PublishSync(ctx, events.NewOdometerRecordedEvent("v2", 12500))).To(Succeed())

		v, err := lk.AssignedVehicle(ctx, d)
		Expect(err).NotTo(HaveOccurred())
		Expect(v.CurrentOdometer).To(Equal(int64(12500)))
		Expect(getter.calls).To(Equal([]string{"v2", "v2"}))
	})

	It("should reject an event of the wrong type", func() {
		h := lookup.NewEventHandler(lk, logger.Discard())
		err := h.HandleOdometerRecorded(ctx, events.NewExpenseCreatedEvent("e1", "d1", "FUEL", "40.00", "EUR", "api"))
		Expect(err).To(HaveOccurred())
	})
})
