package cmd

import (
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	expenseDatamodel "github.com/frahmantamala/fleet-expense/internal/core/datamodel/expense"
	userDatamodel "github.com/frahmantamala/fleet-expense/internal/core/datamodel/user"
	vehicleDatamodel "github.com/frahmantamala/fleet-expense/internal/core/datamodel/vehicle"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sample data",
	Long:  `Seed drivers, vehicles and a handful of expenses for development and testing.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(".")
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		sqlDB, err := initDB(cfg.Database)
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}
		defer sqlDB.Close()

		db, err := initGorm(sqlDB)
		if err != nil {
			log.Fatalf("failed to init gorm: %v", err)
		}

		if clearData {
			for _, table := range []string{"expenses", "users", "vehicles"} {
				if err := db.Exec("DELETE FROM " + table).Error; err != nil {
					log.Fatalf("failed to clear %s: %v", table, err)
				}
			}
			fmt.Println("Cleared existing drivers, vehicles and expenses")
		}

		if err := seed(db); err != nil {
			log.Fatalf("seed failed: %v", err)
		}
	},
}

func seed(db *gorm.DB) error {
	vehicles := []vehicleDatamodel.Vehicle{
		{ID: "veh-001", Make: "Renault", Model: "Kangoo", Year: 2021, LicensePlate: "AB-123-CD", CurrentOdometer: 50000},
		{ID: "veh-002", Make: "Ford", Model: "Transit", Year: 2019, LicensePlate: "EF-456-GH", CurrentOdometer: 132500},
		{ID: "veh-003", Make: "Peugeot", Model: "Partner", Year: 2023, LicensePlate: "IJ-789-KL", CurrentOdometer: 8200},
	}
	for i := range vehicles {
		v := vehicles[i]
		if err := db.Where(vehicleDatamodel.Vehicle{ID: v.ID}).FirstOrCreate(&v).Error; err != nil {
			return fmt.Errorf("vehicle %s: %w", v.ID, err)
		}
		fmt.Println("Seeded vehicle:", v.LicensePlate)
	}

	assigned := func(id string) *string { return &id }
	drivers := []userDatamodel.User{
		{ID: "drv-001", Email: "alice.martin@fleet.test", Name: "Alice Martin", Role: userDatamodel.RoleDriver, AssignedVehicleID: assigned("veh-001"), IsActive: true},
		{ID: "drv-002", Email: "bruno.costa@fleet.test", Name: "Bruno Costa", Role: userDatamodel.RoleDriver, AssignedVehicleID: assigned("veh-002"), IsActive: true},
		{ID: "drv-003", Email: "chloe.dubois@fleet.test", Name: "Chloé Dubois", Role: userDatamodel.RoleDriver, IsActive: true},
		{ID: "drv-004", Email: "dan.okafor@fleet.test", Name: "Dan Okafor", Role: userDatamodel.RoleDriver, AssignedVehicleID: assigned("veh-404"), IsActive: true},
	}
	for i := range drivers {
		d := drivers[i]
		if err := db.Where(userDatamodel.User{ID: d.ID}).FirstOrCreate(&d).Error; err != nil {
			return fmt.Errorf("driver %s: %w", d.ID, err)
		}
		fmt.Println("Seeded driver:", d.Name)
	}

	var count int64
	if err := db.Model(&expenseDatamodel.Expense{}).Count(&count).Error; err != nil {
		return fmt.Errorf("count expenses: %w", err)
	}
	if count > 0 {
		fmt.Println("Expenses already present, skipping")
		return nil
	}

	str := func(s string) *string { return &s }
	km := func(v int64) *int64 { return &v }
	expenses := []expenseDatamodel.Expense{
		{DriverID: "drv-001", VehicleID: str("veh-001"), Type: "FUEL", Merchant: str("Shell"), AmountFinal: decimal.RequireFromString("45.00"), Currency: "EUR", ExpenseDate: "2024-03-01", Kilometers: km(50000)},
		{DriverID: "drv-002", VehicleID: str("veh-002"), Type: "FUEL", Merchant: str("TotalEnergies"), AmountFinal: decimal.RequireFromString("88.40"), Currency: "EUR", ExpenseDate: "2024-03-04", Kilometers: km(132500)},
		{DriverID: "drv-001", Type: "MISC", Category: str("PARKING"), Merchant: str("Indigo"), AmountFinal: decimal.RequireFromString("12.50"), Currency: "EUR", ExpenseDate: "2024-03-05"},
		{DriverID: "drv-003", Type: "MISC", Category: str("TOLL"), Merchant: str("Vinci Autoroutes"), AmountFinal: decimal.RequireFromString("23.10"), Currency: "EUR", ExpenseDate: "2024-02-28"},
		{DriverID: "drv-002", Type: "MISC", Category: str("REPAIR"), Merchant: str("Norauto"), AmountFinal: decimal.RequireFromString("310.00"), Currency: "EUR", ExpenseDate: "2024-01-15", Notes: str("front brake pads")},
	}
	for i := range expenses {
		expenses[i].ID = uuid.New().String()
	}
	if err := db.Create(&expenses).Error; err != nil {
		return fmt.Errorf("insert expenses: %w", err)
	}
	fmt.Printf("Seeded %d expenses\n", len(expenses))
	return nil
}
