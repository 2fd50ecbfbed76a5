package validation

import "testing"

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name    string
		number  string
		want    string
		wantErr bool
	}{
		{
			name:   "international format",
			number: "+79161234567",
			want:   "+79161234567",
		},
		{
			name:   "national format with eight",
			number: "89161234567",
			want:   "+79161234567",
		},
		{
			name:   "with separators",
			number: "+7 (916) 123-45-67",
			want:   "+79161234567",
		},
		{
			name:    "too short",
			number:  "1234",
			wantErr: true,
		},
		{
			name:    "not a number",
			number:  "телефон",
			wantErr: true,
		},
		{
			name:    "empty",
			number:  "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizePhone(tt.number)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("NormalizePhone(%q): expected error, got %q", tt.number, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("NormalizePhone(%q) error: %v", tt.number, err)
			}
			if got != tt.want {
				t.Fatalf("NormalizePhone(%q) = %q, want %q", tt.number, got, tt.want)
			}
		})
	}
}

func TestErrors(t *testing.T) {
	errs := Errors{}
	if !errs.Empty() {
		t.Fatal("new Errors must be empty")
	}

	errs.Add("phonenumber", "this field is required")
	errs.Add("phonenumber", "invalid format")
	errs.Add("address", "this field is required")

	if errs.Empty() {
		t.Fatal("Errors with messages must not be empty")
	}
	if len(errs["phonenumber"]) != 2 {
		t.Fatalf("phonenumber messages = %d, want 2", len(errs["phonenumber"]))
	}
	if len(errs["address"]) != 1 {
		t.Fatalf("address messages = %d, want 1", len(errs["address"]))
	}
}
