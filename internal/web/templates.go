package web

const pageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>InfraScan | Automated Urban Monitoring</title>
    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif; background: #0a0a0a; color: #e5e5e5; }
        a { color: inherit; }
        .menu-toggle { position: fixed; top: 1rem; left: 1rem; z-index: 30; padding: .5rem .75rem; border: none; border-radius: 999px; background: rgba(255,255,255,.85); cursor: pointer; }
        .sidebar { position: fixed; top: 0; left: 0; height: 100%; width: 18rem; padding: 1.5rem; background: #171717; transform: translateX(-100%); transition: transform .3s ease-in-out; z-index: 50; }
        .sidebar.open { transform: translateX(0); }
        .sidebar h2 { margin-bottom: 2rem; }
        .sidebar nav a { display: block; padding: .75rem; border-radius: .5rem; text-decoration: none; font-size: 1.1rem; }
        .sidebar nav a:hover { background: #262626; }
        .hero { min-height: 100vh; display: flex; flex-direction: column; align-items: center; justify-content: center; text-align: center; padding: 2rem; }
        .hero h1 { font-size: clamp(2rem, 6vw, 4.5rem); font-weight: 400; }
        .hero p { max-width: 40rem; margin: 1.5rem auto; color: #a3a3a3; }
        .hero a.cta { display: inline-block; padding: .75rem 1.5rem; border-radius: 999px; background: #fff; color: #000; text-decoration: none; }
        .card { margin: 4rem; padding: 4rem 1rem; background: #fff; color: #171717; border-radius: 1rem; }
        .card h2.title { text-align: center; font-size: clamp(1.5rem, 5vw, 3.5rem); font-weight: 400; color: #404040; padding-bottom: 1rem; }
        .panel { max-width: 48rem; margin: 0 auto; }
        .upload { border: 1px solid #e5e5e5; border-radius: 1rem; padding: 1.5rem; box-shadow: 0 4px 12px rgba(0,0,0,.08); }
        .upload h3 { text-align: center; font-weight: 400; font-size: 1.5rem; color: #525252; margin-bottom: 1rem; }
        .slots { display: grid; grid-template-columns: repeat(auto-fit, minmax(14rem, 1fr)); gap: 1rem; }
        .slot { display: flex; flex-direction: column; align-items: center; gap: .5rem; }
        .slot label { font-weight: 700; color: #404040; }
        .slot img, .tile img { max-width: 100%; border-radius: .5rem; border: 1px solid #e5e5e5; }
        .file-name { font-size: .85rem; color: #737373; }
        .analyze { display: flex; justify-content: center; margin-top: 1.5rem; }
        .analyze button { border: 2px solid #000; background: #fff; padding: .5rem 1rem; border-radius: .5rem; font-size: 1.1rem; cursor: pointer; }
        .analyze button:disabled { opacity: .6; cursor: progress; }
        .form-error, .notice { margin-bottom: 1rem; padding: .75rem 1rem; border-radius: .5rem; background: #fef2f2; color: #b91c1c; }
        .skeletons { margin-top: 2rem; display: grid; grid-template-columns: repeat(auto-fit, minmax(14rem, 1fr)); gap: 1rem; }
        .skeleton { height: 250px; border-radius: .5rem; background: linear-gradient(90deg, #f5f5f5, #e5e5e5, #f5f5f5); background-size: 200% 100%; animation: pulse 1.2s infinite; }
        @keyframes pulse { 0% { background-position: 200% 0; } 100% { background-position: -200% 0; } }
        .results { margin-top: 2rem; display: flex; flex-direction: column; gap: 3rem; }
        .results h3 { text-align: center; font-size: 1.75rem; }
        .tiles { display: flex; flex-wrap: wrap; gap: 2rem; justify-content: center; margin-top: 1rem; }
        .tile { flex: 1 1 18rem; border: 1px solid #d4d4d4; border-radius: 1rem; padding: 1.5rem; }
        .tile h4 { font-size: 1.2rem; color: #525252; }
        .tile p { font-size: .85rem; color: #737373; margin: .5rem 0 1rem; }
        .info { border: 1px solid #d4d4d4; border-radius: 1rem; padding: 1.5rem; }
        .info h4 { margin-bottom: .75rem; }
        .research { text-align: center; }
        .research .facts { display: grid; grid-template-columns: repeat(auto-fit, minmax(12rem, 1fr)); gap: 1rem; margin: 2rem auto; max-width: 56rem; }
        .research .fact { border: 1px solid #e5e5e5; border-radius: .75rem; padding: 1rem; }
        .research iframe { width: 100%; max-width: 56rem; height: 600px; border: 1px solid #e5e5e5; border-radius: .75rem; }
        footer { padding: 3rem 2rem; background: #171717; color: #a3a3a3; }
        footer .cols { display: grid; grid-template-columns: repeat(auto-fit, minmax(12rem, 1fr)); gap: 2rem; max-width: 64rem; margin: 0 auto; }
        footer ul { list-style: none; }
        footer .copy { text-align: center; margin-top: 2rem; font-size: .85rem; }
    </style>
</head>
<body>
    <button class="menu-toggle" type="button" onclick="toggleSidebar(true)" aria-label="Open navigation">&#9776;</button>
    <aside class="sidebar" id="sidebar">
        <h2>InfraScan</h2>
        <nav>
            <a href="#home" onclick="toggleSidebar(false)">Home</a>
            <a href="#demo" onclick="toggleSidebar(false)">InfraScan Test</a>
            <a href="#research" onclick="toggleSidebar(false)">Research Paper</a>
        </nav>
    </aside>

    <section class="hero" id="home">
        <h1>InfraScan Automated Urban Monitoring</h1>
        <p>Using satellite imagery and machine learning to detect unauthorized constructions with high accuracy.</p>
        <a class="cta" href="#demo">Try the demo</a>
    </section>

    <section class="card" id="demo">
        <h2 class="title">InfraScan Test</h2>
        {{template "panel" .}}
    </section>

    <section class="card research" id="research">
        <h2 class="title">Research Paper</h2>
        <h2>Detection of Unauthorized Construction using Machine Learning: A Review</h2>
        <p>This paper reviews 14 research papers from 2015-2024 on detecting unauthorized construction using ML and satellite imagery.</p>
        <div class="facts">
            <div class="fact"><h4>DOI</h4><a href="https://doi.org/10.63169/GCARED2025.p30" target="_blank" rel="noopener">10.63169/GCARED2025.p30</a></div>
            <div class="fact"><h4>ISBN</h4>978-93-343-1044-3</div>
            <div class="fact"><h4>SSRN</h4><a href="https://ssrn.com/abstract=5357895" target="_blank" rel="noopener">ssrn.com/abstract=5357895</a></div>
        </div>
        <h4>View Paper Abstract</h4>
        <iframe src="https://papers.ssrn.com/sol3/papers.cfm?abstract_id=5357895" title="Paper abstract" loading="lazy"></iframe>
    </section>

    <footer>
        <div class="cols">
            <div>
                <h4>Contact</h4>
                <p>Email: info@infrascan.com</p>
                <p>Phone: +1 234 567 890</p>
                <p>Address: 123 Urban Street, City, Country</p>
            </div>
            <div>
                <h4>Follow Us</h4>
                <ul>
                    <li><a href="#" target="_blank" rel="noopener">Twitter</a></li>
                    <li><a href="#" target="_blank" rel="noopener">Facebook</a></li>
                    <li><a href="#" target="_blank" rel="noopener">Instagram</a></li>
                </ul>
            </div>
            <div>
                <h4>Links</h4>
                <ul>
                    <li><a href="#home">Home</a></li>
                    <li><a href="#demo">InfraScan Test</a></li>
                    <li><a href="#research">Research Paper</a></li>
                </ul>
            </div>
        </div>
        <p class="copy">&copy; {{.Year}} InfraScan. All rights reserved.</p>
    </footer>

    <script>
        function toggleSidebar(open) {
            document.getElementById('sidebar').classList.toggle('open', open);
        }

        document.addEventListener('mousemove', function(e) {
            if (window.innerWidth >= 768 && e.clientX < 20) {
                toggleSidebar(true);
            }
        });

        function refreshPanel() {
            fetch('/demo/panel', { credentials: 'same-origin' })
                .then(function(resp) { return resp.ok ? resp.text() : null; })
                .then(function(html) {
                    if (html === null) return;
                    var panel = document.getElementById('demo-panel');
                    if (panel) panel.outerHTML = html;
                });
        }

        function connectWebSocket() {
            var proto = location.protocol === 'https:' ? 'wss://' : 'ws://';
            var sock = new WebSocket(proto + location.host + '/ws');
            sock.onmessage = function(event) {
                // several queued messages may share one frame
                var changed = event.data.split('\n').some(function(line) {
                    try { return JSON.parse(line).type === 'state.change'; } catch (err) { return false; }
                });
                if (changed) refreshPanel();
            };
            sock.onclose = function() {
                setTimeout(connectWebSocket, 3000);
            };
        }

        connectWebSocket();
    </script>
</body>
</html>`

const panelTemplate = `<div class="panel" id="demo-panel" data-state="{{.Snapshot.State}}" data-generation="{{.Snapshot.Generation}}">
    <div class="upload">
        <h3>Upload Image</h3>
        {{with .Error}}<p class="form-error" role="alert">{{.}}</p>{{end}}
        {{with .Snapshot.Notice}}<p class="notice" role="alert">{{.}}</p>{{end}}
        <div class="slots">
            {{range .Snapshot.Slots}}
            <div class="slot">
                <label for="{{.Slot}}-image">{{.Label}}</label>
                <form method="post" action="/demo/slots/{{.Slot}}" enctype="multipart/form-data">
                    <input id="{{.Slot}}-image" type="file" name="image" accept="image/*" onchange="this.form.submit()">
                    <noscript><button type="submit">Upload</button></noscript>
                </form>
                {{if .Populated}}
                <img src="/previews/{{.PreviewID}}" alt="{{.Label}} preview">
                <p class="file-name">{{.FileName}}</p>
                {{end}}
            </div>
            {{end}}
        </div>
        <form class="analyze" method="post" action="/demo/analyze">
            {{if .Snapshot.InFlight}}
            <button type="submit" disabled>Analyzing...</button>
            {{else}}
            <button type="submit">Analyze for Changes</button>
            {{end}}
        </form>
    </div>

    {{if .Snapshot.InFlight}}
    <div class="skeletons" aria-busy="true">
        <div class="skeleton"></div>
        <div class="skeleton"></div>
    </div>
    {{end}}

    {{with .Snapshot.Result}}
    <div class="results">
        {{if $.Snapshot.ShowUploads}}
        <div>
            <h3>Your Uploads</h3>
            <div class="tiles">
                {{range $.Snapshot.Slots}}{{if .Populated}}
                <div class="tile">
                    <h4>{{.Label}}</h4>
                    <p>{{slotCaption .Slot}}</p>
                    <img src="/previews/{{.PreviewID}}" alt="{{.Label}} upload">
                </div>
                {{end}}{{end}}
            </div>
        </div>
        {{end}}

        <div>
            <h3>Analysis Results</h3>
            <div class="tiles">
                <div class="tile">
                    <h4>Result: Detections</h4>
                    <p>New constructions automatically detected and highlighted</p>
                    <img src="{{.ResultImage1URL}}" alt="Detections">
                </div>
                <div class="tile">
                    <h4>Result: Difference Mask</h4>
                    <p>Visual difference mask showing changes over time</p>
                    <img src="{{.ResultImage2URL}}" alt="Difference Mask">
                </div>
            </div>
        </div>

        <div class="info">
            <h4>Test Information</h4>
            <p><strong>SSIM Score:</strong> {{formatSSIM .TextInfo.SSIM}}</p>
            <p><strong>Difference:</strong> {{formatDifference .TextInfo.Difference}}</p>
        </div>
    </div>
    {{end}}
</div>`
