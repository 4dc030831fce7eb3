package webapp

import "html/template"

// pageTemplates holds the rendered pages of the demo application. The markup
// mirrors the look of the interactive login's terminal pages.
var pageTemplates = template.Must(template.New("webapp").Parse(homePage + errorPage))

const pageStyle = `
    <style>
        * {
            box-sizing: border-box;
        }
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Oxygen, Ubuntu, Cantarell, sans-serif;
            display: flex;
            justify-content: center;
            align-items: center;
            min-height: 100vh;
            margin: 0;
            background: linear-gradient(135deg, #0f4c81 0%, #2a9d8f 100%);
            padding: 1rem;
        }
        .container {
            background: white;
            padding: 2.5rem;
            border-radius: 12px;
            box-shadow: 0 10px 25px rgba(0,0,0,0.1);
            max-width: 560px;
            width: 100%;
        }
        h1 {
            color: #1f2937;
            margin: 0 0 1rem;
            font-size: 1.75rem;
            font-weight: 600;
        }
        .subtitle {
            color: #6b7280;
            margin-bottom: 1.5rem;
            font-size: 1rem;
            line-height: 1.5;
        }
        .button {
            display: inline-block;
            background: #0f4c81;
            color: white;
            padding: 0.75rem 1.5rem;
            border-radius: 6px;
            text-decoration: none;
            font-weight: 600;
        }
        .patient {
            background: #ecfdf5;
            border: 1px solid #a7f3d0;
            border-radius: 6px;
            padding: 1rem;
            color: #065f46;
            font-size: 0.875rem;
            margin-bottom: 1.5rem;
            word-break: break-all;
        }
        .reason {
            background: #fef2f2;
            border: 1px solid #fecaca;
            border-radius: 6px;
            padding: 1rem;
            color: #991b1b;
            font-size: 0.875rem;
            margin-bottom: 1.5rem;
        }
        ul.endpoints {
            list-style: none;
            padding: 0;
            margin: 0 0 1.5rem;
        }
        ul.endpoints li {
            margin-bottom: 0.5rem;
        }
        ul.endpoints a {
            color: #0f4c81;
            font-family: ui-monospace, SFMono-Regular, Menlo, monospace;
            font-size: 0.875rem;
        }
        .hint {
            color: #9ca3af;
            font-size: 0.875rem;
        }
    </style>`

const homePage = `{{define "home"}}<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>BeneLink Demo</title>` + pageStyle + `
</head>
<body>
    <div class="container">
        <h1>BeneLink Demo</h1>
{{if .Connected}}        <p class="patient">Connected to patient <strong>{{.Patient}}</strong></p>
        <p class="subtitle">Browse the data made available by the authorization:</p>
        <ul class="endpoints">
            <li><a href="/api/userinfo">/api/userinfo</a></li>
            <li><a href="/api/patient">/api/patient</a></li>
            <li><a href="/api/coverage">/api/coverage</a></li>
            <li><a href="/api/eob">/api/eob</a></li>
            <li><a href="/api/summary">/api/summary</a></li>
        </ul>
        <a class="button" href="/logout">Disconnect</a>
{{else}}        <p class="subtitle">This sample application fetches your claims data from {{.BaseURL}} after you authorize it.</p>
        <a class="button" href="/login">Connect your BeneLink account</a>
        <p class="hint">You will be redirected to the BeneLink authorization server.</p>
{{end}}    </div>
</body>
</html>
{{end}}`

const errorPage = `{{define "error"}}<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Authorization Failed - BeneLink Demo</title>` + pageStyle + `
</head>
<body>
    <div class="container">
        <h1>Authorization Failed</h1>
        <p class="subtitle">The connection to your BeneLink account was not completed.</p>
        <p class="reason">{{.Reason}}</p>
        <a class="button" href="/">Back to start</a>
    </div>
</body>
</html>
{{end}}`
